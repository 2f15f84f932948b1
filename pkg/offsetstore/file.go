package offsetstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/datazip-inc/olake-jdbc/constants"
	"github.com/datazip-inc/olake-jdbc/types"
	"github.com/datazip-inc/olake-jdbc/utils"
	"github.com/datazip-inc/olake-jdbc/utils/logger"
	json "github.com/goccy/go-json"
)

type stateFile struct {
	Version int                       `json:"version"`
	Offsets map[string]map[string]any `json:"offsets"`
}

// FileStore keeps every offset in one JSON state file, rewritten atomically on Save
type FileStore struct {
	mu      sync.Mutex
	path    string
	offsets map[string]types.Offset
}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = filepath.Join(os.TempDir(), constants.DefaultStateFileName)
	}
	store := &FileStore{path: path, offsets: map[string]types.Offset{}}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Infof("state file[%s] not found, starting from empty offsets", path)
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file[%s]: %s", path, err)
	}
	if len(data) == 0 {
		return store, nil
	}

	var state stateFile
	decoder := json.NewDecoder(bytes.NewReader(data))
	// keep int64 offsets exact
	decoder.UseNumber()
	if err := decoder.Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to parse state file[%s]: %s", path, err)
	}
	if state.Version > constants.LatestStateVersion {
		return nil, fmt.Errorf("state file[%s] version %d is newer than supported version %d", path, state.Version, constants.LatestStateVersion)
	}
	for key, raw := range state.Offsets {
		offset, err := types.OffsetFromMap(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid offset for %s in state file[%s]: %s", key, path, err)
		}
		store.offsets[key] = offset
	}
	logger.Infof("loaded %d offsets from state file[%s]", len(store.offsets), path)
	return store, nil
}

func (s *FileStore) Load(_ context.Context, key string) (types.Offset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offsets[key], nil
}

func (s *FileStore) Save(_ context.Context, key string, offset types.Offset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsets[key] = offset

	state := stateFile{Version: constants.LatestStateVersion, Offsets: make(map[string]map[string]any, len(s.offsets))}
	for k, v := range s.offsets {
		state.Offsets[k] = v.ToMap()
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %s", err)
	}
	if err := utils.WriteFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("failed to write state file[%s]: %s", s.path, err)
	}
	return nil
}

func (s *FileStore) List(_ context.Context) (map[string]types.Offset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]types.Offset, len(s.offsets))
	for k, v := range s.offsets {
		out[k] = v
	}
	return out, nil
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Close() error {
	return nil
}
