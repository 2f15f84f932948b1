package destination

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/datazip-inc/olake-jdbc/types"
	"github.com/datazip-inc/olake-jdbc/utils/logger"
)

type (
	NewFunc func() Writer

	Options struct {
		Identifier  string
		TopicPrefix string
		SyncID      string
	}

	ThreadOptions func(opt *Options)

	// WriterPool shares one writer between the threads of every querier
	WriterPool struct {
		batchSize     int
		recordCount   atomic.Int64
		readCount     atomic.Int64
		ThreadCounter atomic.Int64
		writer        Writer
		wmu           sync.Mutex // serializes writes of concurrent threads
	}
)

var RegisteredWriters = map[string]NewFunc{}

func WithIdentifier(identifier string) ThreadOptions {
	return func(opt *Options) {
		opt.Identifier = identifier
	}
}

func WithTopicPrefix(prefix string) ThreadOptions {
	return func(opt *Options) {
		opt.TopicPrefix = prefix
	}
}

func WithSyncID(syncID string) ThreadOptions {
	return func(opt *Options) {
		opt.SyncID = syncID
	}
}

// NewWriter sets up the registered writer for config.Type and checks it
func NewWriter(ctx context.Context, config *types.OutputConfig) (*WriterPool, error) {
	newfunc, found := RegisteredWriters[config.Type]
	if !found {
		return nil, fmt.Errorf("invalid output type has been passed [%s]", config.Type)
	}

	writer := newfunc()
	if err := writer.Setup(ctx, config); err != nil {
		return nil, fmt.Errorf("failed to setup output: %s", err)
	}
	if err := writer.Check(ctx); err != nil {
		_ = writer.Close(ctx)
		return nil, fmt.Errorf("failed to test output: %s", err)
	}

	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	return &WriterPool{batchSize: batchSize, writer: writer}, nil
}

// ThreadEvent buffers the records of one querier
type ThreadEvent struct {
	*WriterPool
	options *Options
	number  int64
	buffer  []*types.RecordRow
}

// NewThread creates a buffer for one querier; threads are not safe for concurrent use
func (w *WriterPool) NewThread(options ...ThreadOptions) *ThreadEvent {
	opts := &Options{}
	for _, one := range options {
		one(opts)
	}
	return &ThreadEvent{
		WriterPool: w,
		options:    opts,
		number:     w.ThreadCounter.Add(1),
		buffer:     make([]*types.RecordRow, 0, w.batchSize),
	}
}

// Push buffers a record and writes the buffer once it reaches the batch size
func (t *ThreadEvent) Push(ctx context.Context, record types.Record, offset types.Offset) error {
	t.buffer = append(t.buffer, &types.RecordRow{
		Source:      t.options.Identifier,
		TopicPrefix: t.options.TopicPrefix,
		SyncID:      t.options.SyncID,
		Data:        record,
		Offset:      offset,
		EmittedAt:   time.Now().UTC(),
	})
	t.readCount.Add(1)
	if len(t.buffer) >= t.batchSize {
		return t.Flush(ctx)
	}
	return nil
}

// Flush writes every buffered record. Offsets may only be persisted after it returns nil.
func (t *ThreadEvent) Flush(ctx context.Context) error {
	if len(t.buffer) == 0 {
		return nil
	}

	t.wmu.Lock()
	err := t.writer.Write(ctx, t.buffer)
	t.wmu.Unlock()
	if err != nil {
		return fmt.Errorf("thread[%d] failed to write %d records: %s", t.number, len(t.buffer), err)
	}

	logger.Debugf("thread[%d] wrote %d records of %s", t.number, len(t.buffer), t.options.Identifier)
	t.recordCount.Add(int64(len(t.buffer)))
	t.buffer = t.buffer[:0]
	return nil
}

func (t *ThreadEvent) Close(ctx context.Context) error {
	return t.Flush(ctx)
}

// SyncedRecords returns the records written by the pool
func (w *WriterPool) SyncedRecords() int64 {
	return w.recordCount.Load()
}

// ReadRecords returns the records pushed to any thread
func (w *WriterPool) ReadRecords() int64 {
	return w.readCount.Load()
}

func (w *WriterPool) Close(ctx context.Context) error {
	w.wmu.Lock()
	defer w.wmu.Unlock()
	return w.writer.Close(ctx)
}
