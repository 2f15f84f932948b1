package parquet

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/datazip-inc/olake-jdbc/destination"
	"github.com/datazip-inc/olake-jdbc/types"
	"github.com/datazip-inc/olake-jdbc/utils/logger"
	json "github.com/goccy/go-json"
	"github.com/oklog/ulid"
	pqgo "github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
)

const (
	Type    = "parquet"
	fileExt = ".parquet"
)

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// Row is the parquet layout of one emitted record; data and offset are JSON
type Row struct {
	Source      string    `parquet:"source"`
	TopicPrefix string    `parquet:"topic_prefix,optional"`
	SyncID      string    `parquet:"sync_id,optional"`
	Data        string    `parquet:"data"`
	Offset      string    `parquet:"offset"`
	EmittedAt   time.Time `parquet:"emitted_at"`
}

// Parquet writes every batch into its own file under
// <path>/<source>/<ulid>.parquet, so a batch is durable once Write returns.
type Parquet struct {
	basePath string
	codec    compress.Codec
	files    int
}

func (p *Parquet) Type() string {
	return Type
}

func (p *Parquet) Setup(_ context.Context, config *types.OutputConfig) error {
	p.basePath = config.Path
	switch config.Compression {
	case "", "snappy":
		p.codec = &pqgo.Snappy
	case "gzip":
		p.codec = &pqgo.Gzip
	case "zstd":
		p.codec = &pqgo.Zstd
	case "none":
		p.codec = &pqgo.Uncompressed
	default:
		return fmt.Errorf("invalid compression codec: %s", config.Compression)
	}
	return os.MkdirAll(p.basePath, os.ModePerm)
}

func (p *Parquet) Check(_ context.Context) error {
	tempFile, err := os.CreateTemp(p.basePath, "temporary-*.txt")
	if err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}
	return os.Remove(tempFile.Name())
}

func (p *Parquet) Write(_ context.Context, records []*types.RecordRow) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]Row, 0, len(records))
	for _, record := range records {
		data, err := json.Marshal(record.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal record of %s: %s", record.Source, err)
		}
		offset, err := json.Marshal(record.Offset)
		if err != nil {
			return fmt.Errorf("failed to marshal offset of %s: %s", record.Source, err)
		}
		rows = append(rows, Row{
			Source:      record.Source,
			TopicPrefix: record.TopicPrefix,
			SyncID:      record.SyncID,
			Data:        string(data),
			Offset:      string(offset),
			EmittedAt:   record.EmittedAt,
		})
	}

	filePath := filepath.Join(p.basePath, unsafePathChars.ReplaceAllString(records[0].Source, "_"), fileName())
	if err := os.MkdirAll(filepath.Dir(filePath), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directories[%s]: %s", filepath.Dir(filePath), err)
	}
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %s", err)
	}
	defer file.Close()

	writer := pqgo.NewGenericWriter[Row](file, pqgo.Compression(p.codec))
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("parquet write error: %s", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %s", err)
	}
	if err := file.Sync(); err != nil {
		return err
	}

	p.files++
	logger.Debugf("wrote %d records to %s", len(rows), filePath)
	return nil
}

func (p *Parquet) Close(_ context.Context) error {
	logger.Infof("parquet writer closed after %d files", p.files)
	return nil
}

// fileName sorts by creation time
func fileName() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String() + fileExt
}

func init() {
	destination.RegisteredWriters[Type] = func() destination.Writer {
		return new(Parquet)
	}
}
