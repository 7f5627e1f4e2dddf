package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"placekit/internal/blob/core"
)

func TestStore_MissingHeadGet(t *testing.T) {
	store := New()
	ctx := context.Background()
	if _, err := store.Head(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected head ErrNotFound, got %v", err)
	}
	if _, _, err := store.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected get ErrNotFound, got %v", err)
	}
	if ok, err := store.Delete(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected delete false")
	}
}

func TestStore_PutOverwrites(t *testing.T) {
	store := New()
	ctx := context.Background()
	first, err := store.Put(ctx, "k", bytes.NewReader([]byte("v")), core.PutOptions{Metadata: map[string]string{"a": "1"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	second, err := store.Put(ctx, "k", bytes.NewReader([]byte("v2")), core.PutOptions{})
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if first.ETag == second.ETag || second.Size != 2 {
		t.Fatalf("unexpected infos %+v %+v", first, second)
	}
	_, rc, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	if string(b) != "v2" {
		t.Fatalf("unexpected content %q", b)
	}
	if _, err := store.Put(ctx, " ", bytes.NewReader(nil), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key error")
	}
}

func TestStore_GetReturnsCopies(t *testing.T) {
	store := New()
	ctx := context.Background()
	if _, err := store.Put(ctx, "k", bytes.NewReader([]byte("abc")), core.PutOptions{Metadata: map[string]string{"a": "1"}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	info, rc, _ := store.Get(ctx, "k")
	info.Metadata["a"] = "mutated"
	b, _ := io.ReadAll(rc)
	b[0] = 'z'
	again, rc2, _ := store.Get(ctx, "k")
	b2, _ := io.ReadAll(rc2)
	if again.Metadata["a"] != "1" || string(b2) != "abc" {
		t.Fatalf("store state leaked through Get: %+v %q", again, b2)
	}
}

func TestStore_ListPrefixSorted(t *testing.T) {
	store := New()
	ctx := context.Background()
	for i := 3; i > 0; i-- {
		if _, err := store.Put(ctx, fmt.Sprintf("PlacedObject/%d.json", i), bytes.NewReader([]byte("x")), core.PutOptions{}); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	if _, err := store.Put(ctx, "other", bytes.NewReader([]byte("x")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	list, err := store.List(ctx, "PlacedObject/")
	if err != nil || len(list) != 3 {
		t.Fatalf("list: %v %+v", err, list)
	}
	if list[0].Key != "PlacedObject/1.json" || list[2].Key != "PlacedObject/3.json" {
		t.Fatalf("unexpected order %+v", list)
	}
	if all, _ := store.List(ctx, ""); len(all) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(all))
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("read fail") }

func TestStore_PutReadError(t *testing.T) {
	if _, err := New().Put(context.Background(), "k", failingReader{}, core.PutOptions{}); err == nil {
		t.Fatalf("expected read error")
	}
}
