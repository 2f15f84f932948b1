package main

import (
	olake "github.com/datazip-inc/olake-jdbc"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	olake.Run()
}
