package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/datazip-inc/olake-jdbc/utils/logger"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// ErrExec executes functions concurrently, at most limit at a time, and
// returns the first error. limit <= 0 means no limit.
func ErrExec(ctx context.Context, limit int, functions ...func(ctx context.Context) error) error {
	group, gCtx := errgroup.WithContext(ctx)
	if limit > 0 {
		group.SetLimit(limit)
	}

	for _, one := range functions {
		group.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
				return one(gCtx)
			}
		})
	}

	return group.Wait()
}

// ErrExecSequential executes functions one by one and accumulates every error
func ErrExecSequential(functions ...func() error) error {
	var multErr error
	for _, one := range functions {
		if err := one(); err != nil {
			multErr = multierror.Append(multErr, err)
		}
	}
	return multErr
}

// RetryExec retries function up to retries extra times while retryable reports
// true, doubling the delay after every attempt. Context cancellation stops the loop.
func RetryExec(ctx context.Context, retries int, delay time.Duration, retryable func(error) bool, function func() error) error {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		err = function()
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == retries {
			break
		}

		logger.Warnf("retry attempt[%d/%d], retrying after %.2f seconds due to err: %s", attempt+1, retries, delay.Seconds(), err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	return fmt.Errorf("failed after %d retries: %w", retries, err)
}
