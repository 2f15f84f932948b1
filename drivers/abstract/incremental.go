package abstract

import (
	"context"
	"fmt"
	"time"

	"github.com/datazip-inc/olake-jdbc/constants"
	"github.com/datazip-inc/olake-jdbc/destination"
	"github.com/datazip-inc/olake-jdbc/pkg/offsetstore"
	"github.com/datazip-inc/olake-jdbc/pkg/querier"
	"github.com/datazip-inc/olake-jdbc/telemetry"
	"github.com/datazip-inc/olake-jdbc/types"
	"github.com/datazip-inc/olake-jdbc/utils"
	"github.com/datazip-inc/olake-jdbc/utils/logger"
	"github.com/datazip-inc/olake-jdbc/utils/safego"
)

type SyncOptions struct {
	SyncID string
	// Once polls every table a single time instead of looping until cancelled
	Once bool
	// RetryBackoff is the first delay between retries of a failed poll
	RetryBackoff time.Duration
}

// tableSync is the querier of one configured table with its output thread
type tableSync struct {
	name    string
	querier *querier.Querier
	thread  *destination.ThreadEvent
	saved   types.Offset
}

// Incremental polls every configured table until ctx is cancelled, or once
// with opts.Once. Offsets are saved only after the rows they cover were
// written by the pool.
func (a *AbstractDriver) Incremental(ctx context.Context, store offsetstore.Store, pool *destination.WriterPool, opts SyncOptions) error {
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = constants.DefaultRetryBackoff
	}

	tables := make([]*tableSync, 0, len(a.config.Tables))
	err := utils.ErrExecSequential(utils.Map(a.config.Tables, func(config *types.TableConfig) func() error {
		return func() error {
			table, err := a.newTableSync(ctx, store, pool, config, opts.SyncID)
			if err != nil {
				return err
			}
			tables = append(tables, table)
			return nil
		}
	})...)
	if err != nil {
		return fmt.Errorf("failed to create queriers: %w", err)
	}

	// tables are not limited here, the connection pool bounds concurrent queries
	err = utils.ErrExec(ctx, 0, utils.Map(tables, func(table *tableSync) func(context.Context) error {
		return func(ctx context.Context) error {
			return a.runTable(ctx, store, table, opts)
		}
	})...)
	if err != nil && ctx.Err() != nil {
		logger.Info("sync cancelled, committed offsets are saved")
		return nil
	}
	return err
}

func (a *AbstractDriver) newTableSync(ctx context.Context, store offsetstore.Store, pool *destination.WriterPool, config *types.TableConfig, syncID string) (*tableSync, error) {
	name := config.Name()
	offset, err := store.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load offset of %s: %s", name, err)
	}

	q, err := querier.NewFromConfig(a.provider, config, offset)
	if err != nil {
		return nil, err
	}
	logger.Infof("resuming %s from %s", q, offset)

	return &tableSync{
		name:    name,
		querier: q,
		thread:  pool.NewThread(destination.WithIdentifier(q.String()), destination.WithTopicPrefix(config.TopicPrefix), destination.WithSyncID(syncID)),
		saved:   offset,
	}, nil
}

func (a *AbstractDriver) runTable(ctx context.Context, store offsetstore.Store, table *tableSync, opts SyncOptions) error {
	for {
		if err := a.poll(ctx, store, table, opts); err != nil {
			return err
		}
		if opts.Once {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.config.PollInterval()):
		}
	}
}

// poll runs one retried poll, then flushes the output and saves the committed
// offset. Both also happen after a failed poll so accepted rows are not read again.
func (a *AbstractDriver) poll(ctx context.Context, store offsetstore.Store, table *tableSync, opts SyncOptions) error {
	start := time.Now()
	var rows int64

	attempt := 0
	pollErr := utils.RetryExec(ctx, a.config.Retries(), opts.RetryBackoff, types.IsRetryable, func() error {
		if attempt > 0 {
			telemetry.TrackRetry(table.querier.String())
		}
		attempt++
		return safego.Call(func() error {
			return table.querier.Poll(ctx, func(ctx context.Context, record types.Record) error {
				offset, err := table.querier.OffsetOf(record)
				if err != nil {
					return err
				}
				rows++
				return table.thread.Push(ctx, record, offset)
			})
		})
	})
	telemetry.TrackPoll(table.querier.String(), rows, time.Since(start), pollErr)

	if err := a.persist(context.WithoutCancel(ctx), store, table); err != nil {
		if pollErr != nil {
			return fmt.Errorf("%s, and failed to persist: %s", pollErr, err)
		}
		return err
	}
	if pollErr != nil {
		return fmt.Errorf("poll of %s failed: %w", table.querier, pollErr)
	}
	if rows > 0 {
		logger.Infof("read %d rows of %s, offset %s", rows, table.querier, table.saved)
	}
	return nil
}

func (a *AbstractDriver) persist(ctx context.Context, store offsetstore.Store, table *tableSync) error {
	if err := table.thread.Flush(ctx); err != nil {
		return err
	}

	offset := table.querier.Offset()
	if offset.IsZero() || offset.Equal(table.saved) {
		return nil
	}
	if err := store.Save(ctx, table.name, offset); err != nil {
		return fmt.Errorf("failed to save offset of %s: %s", table.name, err)
	}
	table.saved = offset
	telemetry.TrackOffset(table.querier.String(), offset)
	return nil
}
