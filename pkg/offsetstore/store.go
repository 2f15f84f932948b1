package offsetstore

import (
	"bytes"
	"context"
	"fmt"

	"github.com/datazip-inc/olake-jdbc/types"
	json "github.com/goccy/go-json"
)

// Store persists the committed offset of every querier, keyed by querier name
type Store interface {
	// Load returns the zero offset when nothing was stored for key
	Load(ctx context.Context, key string) (types.Offset, error)
	Save(ctx context.Context, key string, offset types.Offset) error
	List(ctx context.Context) (map[string]types.Offset, error)
	Close() error
}

// New opens the store selected by cfg.Type. statePath overrides cfg.Path for
// the file store.
func New(ctx context.Context, cfg types.OffsetStoreConfig, statePath string) (Store, error) {
	switch cfg.Type {
	case "", "file":
		path := statePath
		if path == "" {
			path = cfg.Path
		}
		return NewFileStore(path)
	case "bolt":
		return NewBoltStore(cfg.Path)
	case "redis":
		return NewRedisStore(ctx, cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported offset store type %q", cfg.Type)
	}
}

func encodeOffset(offset types.Offset) ([]byte, error) {
	return json.Marshal(offset.ToMap())
}

func decodeOffset(data []byte) (types.Offset, error) {
	if len(data) == 0 {
		return types.Offset{}, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return types.Offset{}, fmt.Errorf("failed to decode offset: %s", err)
	}
	return types.OffsetFromMap(raw)
}
