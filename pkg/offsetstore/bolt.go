package offsetstore

import (
	"context"
	"fmt"
	"time"

	"github.com/datazip-inc/olake-jdbc/constants"
	"github.com/datazip-inc/olake-jdbc/types"
	"github.com/datazip-inc/olake-jdbc/utils/logger"
	"go.etcd.io/bbolt"
)

var bucketName = []byte(constants.DefaultBoltBucketName)

// BoltStore keeps offsets in a bbolt bucket, one JSON encoded offset per key
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt offset store requires a path")
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		// a killed process may still hold the file lock
		return nil, fmt.Errorf("failed to open boltdb (file may be locked by another process): %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	logger.Infof("bolt offset store initialized at %s", path)
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Load(_ context.Context, key string) (types.Offset, error) {
	var offset types.Offset
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		var err error
		offset, err = decodeOffset(b.Get([]byte(key)))
		return err
	})
	if err != nil {
		return types.Offset{}, fmt.Errorf("failed to get offset: %w", err)
	}
	return offset, nil
}

func (s *BoltStore) Save(_ context.Context, key string, offset types.Offset) error {
	val, err := encodeOffset(offset)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.Put([]byte(key), val)
	})
	if err != nil {
		return fmt.Errorf("failed to set offset: %w", err)
	}
	logger.Debugf("stored offset %s for %s", offset, key)
	return nil
}

func (s *BoltStore) List(_ context.Context) (map[string]types.Offset, error) {
	result := make(map[string]types.Offset)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return fmt.Errorf("bucket not found")
		}
		return b.ForEach(func(k, v []byte) error {
			offset, err := decodeOffset(v)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			result[string(k)] = offset
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list offsets: %w", err)
	}
	return result, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
