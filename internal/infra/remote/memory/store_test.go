package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"placekit/pkg/domain"
)

func obj(id string, modified int64) domain.PlacedObject {
	return domain.PlacedObject{
		ID:           id,
		Name:         "obj-" + id,
		ModelKind:    "cube",
		Transform:    domain.IdentityTransform(),
		CreatedAt:    time.Unix(0, 0).UTC(),
		LastModified: time.Unix(modified, 0).UTC(),
	}
}

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != "memory" {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	for _, o := range []domain.PlacedObject{obj("b", 1), obj("a", 2)} {
		if err := s.Upsert(ctx, domain.RecordType, o); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if err := s.Upsert(ctx, "Other", obj("z", 1)); err != nil {
		t.Fatalf("upsert other: %v", err)
	}
	got, err := s.FetchAll(ctx, domain.RecordType)
	if err != nil || len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("fetch: %v %+v", err, got)
	}
	updated := obj("a", 9)
	if err := s.Upsert(ctx, domain.RecordType, updated); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, _ = s.FetchAll(ctx, domain.RecordType)
	if !got[0].LastModified.Equal(updated.LastModified) {
		t.Fatalf("expected replacement, got %+v", got[0])
	}
	if ok, err := s.Delete(ctx, domain.RecordType, "a"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := s.Delete(ctx, domain.RecordType, "a"); err != nil || ok {
		t.Fatalf("second delete: %v %v", ok, err)
	}
	n, err := s.DeleteAll(ctx, domain.RecordType)
	if err != nil || n != 1 {
		t.Fatalf("delete all: %d %v", n, err)
	}
	if other, _ := s.FetchAll(ctx, "Other"); len(other) != 1 {
		t.Fatalf("delete all must be scoped to record type, got %+v", other)
	}
	if err := s.Upsert(ctx, domain.RecordType, domain.PlacedObject{}); err == nil {
		t.Fatalf("expected empty id error")
	}
	if s.Calls("upsert") != 4 || s.Calls("delete") != 2 {
		t.Fatalf("unexpected call counts upsert=%d delete=%d", s.Calls("upsert"), s.Calls("delete"))
	}
}

func TestStore_HookFailuresAreUnavailable(t *testing.T) {
	ctx := context.Background()
	s := New()
	offline := errors.New("no account")
	s.SetHook(func(context.Context, string) error { return offline })
	if _, err := s.FetchAll(ctx, domain.RecordType); !errors.Is(err, domain.ErrRemoteUnavailable) || !errors.Is(err, offline) {
		t.Fatalf("expected remote unavailable, got %v", err)
	}
	if err := s.Upsert(ctx, domain.RecordType, obj("a", 1)); !errors.Is(err, domain.ErrRemoteUnavailable) {
		t.Fatalf("expected remote unavailable, got %v", err)
	}
	s.SetHook(nil)
	if err := s.Upsert(ctx, domain.RecordType, obj("a", 1)); err != nil {
		t.Fatalf("upsert after hook removal: %v", err)
	}
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := s.Delete(cctx, domain.RecordType, "a"); !errors.Is(err, domain.ErrRemoteUnavailable) {
		t.Fatalf("expected cancelled context to fail, got %v", err)
	}
}
