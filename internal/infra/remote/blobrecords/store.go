// Package blobrecords implements the remote record store on top of a blob
// backend, writing one JSON object per record.
package blobrecords

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	blobcore "placekit/internal/blob/core"
	"placekit/internal/remote/core"
	"placekit/pkg/domain"
)

const (
	driverName = string(core.DriverBlob)
	// DefaultPrefix namespaces record objects inside the bucket or root.
	DefaultPrefix = "records"
	defaultFanout = 8
)

// Store keeps records at <prefix>/<recordType>/<escaped id>.json.
type Store struct {
	blobs  blobcore.Store
	prefix string
	fanout int
	logger core.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithFanout bounds the number of concurrent object reads during FetchAll.
func WithFanout(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.fanout = n
		}
	}
}

// WithLogger routes warnings about skipped objects to l.
func WithLogger(l core.Logger) Option {
	return func(s *Store) { s.logger = core.LoggerOrNop(l) }
}

// New wraps blobs. An empty prefix selects DefaultPrefix.
func New(blobs blobcore.Store, prefix string, opts ...Option) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	s := &Store{blobs: blobs, prefix: strings.Trim(prefix, "/"), fanout: defaultFanout, logger: core.NopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Driver returns the remote driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverBlob }

// Backend reports the blob driver underneath.
func (s *Store) Backend() blobcore.Driver { return s.blobs.Driver() }

func (s *Store) dir(recordType string) string {
	return s.prefix + "/" + url.PathEscape(recordType) + "/"
}

func (s *Store) key(recordType, id string) string {
	return s.dir(recordType) + url.PathEscape(id) + ".json"
}

// FetchAll lists the record type's objects and reads them concurrently.
// Objects that do not decode are logged and skipped.
func (s *Store) FetchAll(ctx context.Context, recordType string) ([]domain.PlacedObject, error) {
	infos, err := s.blobs.List(ctx, s.dir(recordType))
	if err != nil {
		return nil, domain.Unavailable(driverName, "fetch", err)
	}
	out := make([]domain.PlacedObject, len(infos))
	found := make([]bool, len(infos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanout)
	for i, info := range infos {
		i, info := i, info
		g.Go(func() error {
			obj, ok, err := s.read(gctx, info.Key)
			if err != nil {
				return err
			}
			out[i], found[i] = obj, ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	objs := out[:0]
	for i := range out {
		if found[i] {
			objs = append(objs, out[i])
		}
	}
	core.SortByID(objs)
	return objs, nil
}

// read returns ok=false when the object vanished between List and Get or
// holds an undecodable payload.
func (s *Store) read(ctx context.Context, key string) (domain.PlacedObject, bool, error) {
	_, rc, err := s.blobs.Get(ctx, key)
	if errors.Is(err, blobcore.ErrNotFound) {
		return domain.PlacedObject{}, false, nil
	}
	if err != nil {
		return domain.PlacedObject{}, false, domain.Unavailable(driverName, "fetch", err)
	}
	defer func() { _ = rc.Close() }()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return domain.PlacedObject{}, false, domain.Unavailable(driverName, "fetch", err)
	}
	var obj domain.PlacedObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		s.logger.Warn("skipping undecodable remote record", "driver", driverName, "key", key, "error", err)
		return domain.PlacedObject{}, false, nil
	}
	return obj, true, nil
}

// Upsert writes the record object, replacing any previous version.
func (s *Store) Upsert(ctx context.Context, recordType string, obj domain.PlacedObject) error {
	if obj.ID == "" {
		return fmt.Errorf("upsert %s: empty id", recordType)
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return &domain.SerializationError{Op: "encode record " + obj.ID, Err: err}
	}
	_, err = s.blobs.Put(ctx, s.key(recordType, obj.ID), bytes.NewReader(raw), blobcore.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"record-type": recordType, "record-id": obj.ID},
	})
	if err != nil {
		return domain.Unavailable(driverName, "upsert", err)
	}
	return nil
}

// Delete removes one record object.
func (s *Store) Delete(ctx context.Context, recordType, id string) (bool, error) {
	ok, err := s.blobs.Delete(ctx, s.key(recordType, id))
	if err != nil {
		return false, domain.Unavailable(driverName, "delete", err)
	}
	return ok, nil
}

// DeleteAll removes every object under the record type directory.
func (s *Store) DeleteAll(ctx context.Context, recordType string) (int, error) {
	infos, err := s.blobs.List(ctx, s.dir(recordType))
	if err != nil {
		return 0, domain.Unavailable(driverName, "delete_all", err)
	}
	removed := 0
	for _, info := range infos {
		ok, err := s.blobs.Delete(ctx, info.Key)
		if err != nil {
			return removed, domain.Unavailable(driverName, "delete_all", err)
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}
