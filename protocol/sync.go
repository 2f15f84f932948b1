package protocol

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/datazip-inc/olake-jdbc/constants"
	"github.com/datazip-inc/olake-jdbc/destination"
	"github.com/datazip-inc/olake-jdbc/drivers/abstract"
	"github.com/datazip-inc/olake-jdbc/pkg/offsetstore"
	"github.com/datazip-inc/olake-jdbc/types"
	"github.com/datazip-inc/olake-jdbc/utils"
	"github.com/datazip-inc/olake-jdbc/utils/logger"
	"github.com/oklog/ulid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "olake-jdbc sync command",
	Example: `olake-jdbc sync --config path/to/config.json --state path/to/state.json --once
olake-jdbc sync --config path/to/config.yaml --metrics-addr :9090`,
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return loadConfig()
	},
	RunE: func(cmd *cobra.Command, _ []string) (err error) {
		ctx := cmd.Context()
		startTime := time.Now()
		syncID := ulid.MustNew(ulid.Timestamp(startTime), rand.Reader).String()

		if err := connector.Setup(ctx); err != nil {
			return err
		}
		config := connector.GetConfigRef()

		store, err := offsetstore.New(ctx, config.OffsetStore, viper.GetString(constants.StatePath))
		if err != nil {
			return fmt.Errorf("failed to open offset store: %s", err)
		}

		pool, err := destination.NewWriter(ctx, &config.Output)
		if err != nil {
			return err
		}

		defer func() {
			closeErr := utils.ErrExecSequential(
				func() error { return pool.Close(context.WithoutCancel(ctx)) },
				store.Close,
				connector.Close,
			)
			if err == nil {
				err = closeErr
			}
		}()

		logger.Infof("starting sync[%s] of %d tables", syncID, len(config.Tables))
		if err := connector.Incremental(ctx, store, pool, abstract.SyncOptions{SyncID: syncID, Once: once}); err != nil {
			return fmt.Errorf("error occurred while reading records: %s", err)
		}

		offsets, err := store.List(context.WithoutCancel(ctx))
		if err != nil {
			return fmt.Errorf("failed to list offsets: %s", err)
		}
		logger.LogMessage(types.Message{Type: types.StateMessage, State: offsets})
		logger.Infof("sync[%s] finished in %s, records read: %d, records written: %d", syncID, time.Since(startTime), pool.ReadRecords(), pool.SyncedRecords())
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVarP(&once, "once", "", false, "(Optional) Poll every table a single time and exit")
}
