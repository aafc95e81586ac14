package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/datajunction/djqs/pkg/storage"
)

// DiskStore keeps each value as one object on a storage disk, wrapped with
// its expiry time.
type DiskStore struct {
	disk storage.Disk
	now  func() time.Time
}

type diskEntry struct {
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	Value     json.RawMessage `json:"value"`
}

// NewDiskStore stores values on disk.
func NewDiskStore(disk storage.Disk) *DiskStore {
	return &DiskStore{disk: disk, now: time.Now}
}

// keyPath maps "<id>" to "<id>.json" and a prefixed "a:b:<id>" to
// "a/b/<id>.json".
func keyPath(key string) string {
	return strings.ReplaceAll(key, ":", "/") + ".json"
}

func (s *DiskStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.disk.Get(ctx, keyPath(key))
	if errors.Is(err, storage.ErrNotFound) {
		observe("storage", false)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var e diskEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false, err
	}
	if e.ExpiresAt != nil && !s.now().Before(*e.ExpiresAt) {
		observe("storage", false)
		return nil, false, s.disk.Delete(ctx, keyPath(key))
	}

	observe("storage", true)
	return e.Value, true, nil
}

// Set requires value to be valid JSON.
func (s *DiskStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	e := diskEntry{Value: value}
	if ttl > 0 {
		exp := s.now().Add(ttl).UTC()
		e.ExpiresAt = &exp
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.disk.Put(ctx, keyPath(key), raw)
}

func (s *DiskStore) Delete(ctx context.Context, key string) error {
	return s.disk.Delete(ctx, keyPath(key))
}
