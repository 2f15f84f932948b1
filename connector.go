package olake

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/datazip-inc/olake-jdbc/drivers/abstract"
	"github.com/datazip-inc/olake-jdbc/protocol"
	"github.com/datazip-inc/olake-jdbc/utils/logger"
	"github.com/datazip-inc/olake-jdbc/utils/safego"

	_ "github.com/datazip-inc/olake-jdbc/destination/jsonl"   // registering json lines writer
	_ "github.com/datazip-inc/olake-jdbc/destination/parquet" // registering parquet writer
)

// Run executes the CLI; SIGINT and SIGTERM stop a running sync after its
// committed offsets are saved.
func Run() {
	defer safego.Recovery(true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := protocol.CreateRootCommand(abstract.NewAbstractDriver()).ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Fatal(err)
	}

	os.Exit(0)
}
