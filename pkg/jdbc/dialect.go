package jdbc

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/datazip-inc/olake-jdbc/constants"
	"github.com/datazip-inc/olake-jdbc/types"
	"github.com/jmoiron/sqlx"
)

// Dialect holds the vendor specific SQL fragments the criteria and querier need.
type Dialect interface {
	Name() constants.DriverType
	// BindType is the sqlx bind type placeholders are written in
	BindType() int
	QuoteIdentifier(identifier string) string
	QuoteTable(table types.TableID) string
	// CombineDateTime returns an expression turning a date column and a time
	// column into one comparable timestamp
	CombineDateTime(columns types.ColumnDateTime) string
	// TimestampExpression wraps a timestamp column expression into the form
	// bound timestamps are compared against
	TimestampExpression(expr string) string
	// CurrentTimeQuery returns the database's current time in UTC
	CurrentTimeQuery() string
	// BindTimestamp converts a watermark into the query argument compared
	// against columns holding wall clock values of loc
	BindTimestamp(ts time.Time, loc *time.Location) any
	ExpressionBuilder() *ExpressionBuilder
	PrepareStatement(ctx context.Context, conn *sqlx.Conn, query string) (*sqlx.Stmt, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Dialect{}
)

// Register makes a dialect available for the given subprotocols
func Register(dialect Dialect, subprotocols ...string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, sub := range subprotocols {
		registry[strings.ToLower(sub)] = dialect
	}
}

// DialectFor picks the dialect registered for the subprotocol of url, falling
// back to the generic dialect.
func DialectFor(url string) Dialect {
	sub := Subprotocol(url)
	registryMu.RLock()
	defer registryMu.RUnlock()
	if dialect, found := registry[sub]; found {
		return dialect
	}
	return registry[string(constants.Generic)]
}

// DialectByName looks a dialect up by subprotocol or dialect name
func DialectByName(name string) (Dialect, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if dialect, found := registry[strings.ToLower(name)]; found {
		return dialect, nil
	}
	return nil, fmt.Errorf("no dialect registered for %q", name)
}

// Subprotocol extracts "postgresql" out of "jdbc:postgresql://host/db" or
// "postgresql://host/db".
func Subprotocol(url string) string {
	rest := strings.TrimPrefix(strings.TrimSpace(url), "jdbc:")
	if idx := strings.Index(rest, ":"); idx > 0 {
		return strings.ToLower(rest[:idx])
	}
	return ""
}
