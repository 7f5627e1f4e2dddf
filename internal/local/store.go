// Package local persists the serialized placed-object collection as a single
// blob on a blob.Store.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"placekit/internal/blob"
)

// DefaultKey is the blob key the collection is written under.
const DefaultKey = "placed-objects.json"

// Store saves and loads one opaque blob.
type Store struct {
	blobs blob.Store
	key   string
}

// New wraps blobs. An empty key selects DefaultKey.
func New(blobs blob.Store, key string) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{blobs: blobs, key: key}
}

// Key returns the blob key in use.
func (s *Store) Key() string { return s.key }

// Save replaces the stored blob.
func (s *Store) Save(ctx context.Context, data []byte) error {
	if _, err := s.blobs.Put(ctx, s.key, bytes.NewReader(data), blob.PutOptions{ContentType: contentType(data)}); err != nil {
		return fmt.Errorf("local save %s: %w", s.key, err)
	}
	return nil
}

// Load returns the stored blob, or nil with no error when nothing has been
// saved yet.
func (s *Store) Load(ctx context.Context) ([]byte, error) {
	_, rc, err := s.blobs.Get(ctx, s.key)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("local load %s: %w", s.key, err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("local read %s: %w", s.key, err)
	}
	return data, nil
}

func contentType(data []byte) string {
	if len(data) > 0 && data[0] == '{' {
		return "application/json"
	}
	return "application/zstd"
}
