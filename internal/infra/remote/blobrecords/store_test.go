package blobrecords

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	blobcore "placekit/internal/blob/core"
	"placekit/internal/infra/blob/fs"
	"placekit/internal/infra/blob/memory"
	"placekit/pkg/domain"
)

func record(id string, modified int64) domain.PlacedObject {
	o := domain.NewPlacedObject("item "+id, "plant.usdz", domain.IdentityTransform(), time.Unix(0, 0))
	o.ID = id
	o.LastModified = time.Unix(modified, 0).UTC()
	return o
}

func TestStore_CRUDOnBackends(t *testing.T) {
	fsStore, err := fs.New(t.TempDir())
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	backends := map[string]blobcore.Store{"memory": memory.New(), "fs": fsStore}
	for name, backend := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := New(backend, "", WithFanout(2))
			if s.Driver() != "blob" || s.Backend() != backend.Driver() {
				t.Fatalf("unexpected drivers %s/%s", s.Driver(), s.Backend())
			}
			for i := 5; i >= 1; i-- {
				if err := s.Upsert(ctx, domain.RecordType, record(fmt.Sprintf("id-%d", i), int64(i))); err != nil {
					t.Fatalf("upsert: %v", err)
				}
			}
			if err := s.Upsert(ctx, domain.RecordType, record("id-3", 30)); err != nil {
				t.Fatalf("re-upsert: %v", err)
			}
			if err := s.Upsert(ctx, "Anchor", record("id-1", 1)); err != nil {
				t.Fatalf("other type: %v", err)
			}
			got, err := s.FetchAll(ctx, domain.RecordType)
			if err != nil {
				t.Fatalf("fetch: %v", err)
			}
			if len(got) != 5 || got[0].ID != "id-1" || got[2].LastModified.Unix() != 30 {
				t.Fatalf("unexpected records %+v", got)
			}
			if ok, err := s.Delete(ctx, domain.RecordType, "id-1"); err != nil || !ok {
				t.Fatalf("delete: %v %v", ok, err)
			}
			if ok, err := s.Delete(ctx, domain.RecordType, "id-1"); err != nil || ok {
				t.Fatalf("second delete: %v %v", ok, err)
			}
			n, err := s.DeleteAll(ctx, domain.RecordType)
			if err != nil || n != 4 {
				t.Fatalf("delete all: %d %v", n, err)
			}
			if rest, _ := s.FetchAll(ctx, "Anchor"); len(rest) != 1 {
				t.Fatalf("other record type must survive: %+v", rest)
			}
		})
	}
}

func TestStore_IDsAreEscaped(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	s := New(backend, "/sync/")
	if err := s.Upsert(ctx, domain.RecordType, record("a/b c", 1)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	infos, err := backend.List(ctx, "sync/")
	if err != nil || len(infos) != 1 || infos[0].Key != "sync/PlacedObject/a%2Fb%20c.json" {
		t.Fatalf("unexpected keys %+v %v", infos, err)
	}
	got, err := s.FetchAll(ctx, domain.RecordType)
	if err != nil || len(got) != 1 || got[0].ID != "a/b c" {
		t.Fatalf("fetch: %+v %v", got, err)
	}
}

type warnings struct {
	mu   sync.Mutex
	msgs []string
}

func (w *warnings) Warn(msg string, _ ...any) {
	w.mu.Lock()
	w.msgs = append(w.msgs, msg)
	w.mu.Unlock()
}

func TestStore_CorruptObjectIsSkipped(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	w := &warnings{}
	s := New(backend, "", WithLogger(w))
	if _, err := backend.Put(ctx, "records/PlacedObject/x.json", bytes.NewReader([]byte("{")), blobcore.PutOptions{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.Upsert(ctx, domain.RecordType, record("good", 2)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := s.FetchAll(ctx, domain.RecordType)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 1 || got[0].ID != "good" {
		t.Fatalf("expected only the decodable record, got %+v", got)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected one skip warning, got %v", w.msgs)
	}
}

type failingBlobs struct {
	blobcore.Store
}

func (failingBlobs) List(context.Context, string) ([]blobcore.Info, error) {
	return nil, errors.New("bucket offline")
}

func (failingBlobs) Put(context.Context, string, io.Reader, blobcore.PutOptions) (blobcore.Info, error) {
	return blobcore.Info{}, errors.New("bucket offline")
}

func (failingBlobs) Delete(context.Context, string) (bool, error) {
	return false, errors.New("bucket offline")
}

func TestStore_BackendFailuresAreUnavailable(t *testing.T) {
	ctx := context.Background()
	s := New(failingBlobs{Store: memory.New()}, "")
	_, fetchErr := s.FetchAll(ctx, domain.RecordType)
	upsertErr := s.Upsert(ctx, domain.RecordType, record("a", 1))
	_, deleteErr := s.Delete(ctx, domain.RecordType, "a")
	_, clearErr := s.DeleteAll(ctx, domain.RecordType)
	for _, err := range []error{fetchErr, upsertErr, deleteErr, clearErr} {
		if !errors.Is(err, domain.ErrRemoteUnavailable) {
			t.Fatalf("expected unavailable, got %v", err)
		}
	}
}
