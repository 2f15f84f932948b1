package jsonl

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/datazip-inc/olake-jdbc/destination"
	"github.com/datazip-inc/olake-jdbc/types"
	"github.com/datazip-inc/olake-jdbc/utils/logger"
	json "github.com/goccy/go-json"
)

const Type = "jsonl"

// JSONL writes one RECORD message per line to stdout or an appended file.
// On stdout records share the message stream with LOG messages.
type JSONL struct {
	path   string
	file   *os.File
	buffer *bufio.Writer
}

func (j *JSONL) Type() string {
	return Type
}

func (j *JSONL) Setup(_ context.Context, config *types.OutputConfig) error {
	j.path = config.Path
	if j.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(j.path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory of %s: %s", j.path, err)
	}
	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %s", j.path, err)
	}
	j.file = file
	j.buffer = bufio.NewWriter(file)
	logger.Infof("writing records to %s", j.path)
	return nil
}

func (j *JSONL) Check(_ context.Context) error {
	if j.file == nil {
		return nil
	}
	_, err := j.file.Stat()
	return err
}

func (j *JSONL) Write(_ context.Context, records []*types.RecordRow) error {
	if j.buffer == nil {
		for _, record := range records {
			if err := logger.WriteMessage(types.Message{Type: types.RecordMessage, Record: record}); err != nil {
				return fmt.Errorf("failed to write record of %s: %s", record.Source, err)
			}
		}
		return nil
	}

	encoder := json.NewEncoder(j.buffer)
	for _, record := range records {
		if err := encoder.Encode(types.Message{Type: types.RecordMessage, Record: record}); err != nil {
			return fmt.Errorf("failed to encode record of %s: %s", record.Source, err)
		}
	}
	if err := j.buffer.Flush(); err != nil {
		return err
	}
	if j.file != nil {
		return j.file.Sync()
	}
	return nil
}

func (j *JSONL) Close(_ context.Context) error {
	if j.buffer == nil {
		return nil
	}
	if err := j.buffer.Flush(); err != nil {
		return err
	}
	if j.file != nil {
		return j.file.Close()
	}
	return nil
}

func init() {
	destination.RegisteredWriters[Type] = func() destination.Writer {
		return new(JSONL)
	}
}
