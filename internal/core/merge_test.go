package core

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"placekit/pkg/domain"
)

func withID(o domain.PlacedObject, id string) domain.PlacedObject {
	o.ID = id
	return o
}

func TestMergeInsertsUnknownRecordExactly(t *testing.T) {
	s := newTestStore(t, newLocal())
	mustAdd(t, s, object("local", 3))
	r := object("remote", 7)
	r.Transform = r.Transform.Translated(domain.Vec3{X: 1, Y: 2, Z: 3})
	report := s.MergeRemote(context.Background(), []domain.PlacedObject{r})
	if report != (MergeReport{Inserted: 1}) || !report.Changed() {
		t.Fatalf("unexpected report %+v", report)
	}
	got, ok := s.Get(r.ID)
	if !ok {
		t.Fatalf("remote record not inserted")
	}
	if diff := cmp.Diff(r, got); diff != "" {
		t.Fatalf("inserted record differs (-remote +stored):\n%s", diff)
	}
	if s.Len() != 2 {
		t.Fatalf("expected exactly one insertion, len=%d", s.Len())
	}
}

func TestMergeLocalWinsTiesAndNewerLocal(t *testing.T) {
	for _, remoteModified := range []int64{10, 9, 1} {
		s := newTestStore(t, newLocal())
		l := mustAdd(t, s, withID(object("local", 10), "A"))
		r := withID(object("remote", remoteModified), "A")
		report := s.MergeRemote(context.Background(), []domain.PlacedObject{r})
		if report != (MergeReport{Kept: 1}) || report.Changed() {
			t.Fatalf("remote@%d: unexpected report %+v", remoteModified, report)
		}
		got, _ := s.Get("A")
		if diff := cmp.Diff(l, got); diff != "" {
			t.Fatalf("remote@%d: local changed:\n%s", remoteModified, diff)
		}
	}
}

func TestMergeNewerRemoteReplacesExactly(t *testing.T) {
	s := newTestStore(t, newLocal())
	mustAdd(t, s, withID(object("local", 10), "A"))
	r := withID(object("remote", 11), "A")
	r.Transform = r.Transform.ScaledBy(2)
	report := s.MergeRemote(context.Background(), []domain.PlacedObject{r})
	if report != (MergeReport{Replaced: 1}) {
		t.Fatalf("unexpected report %+v", report)
	}
	got, _ := s.Get("A")
	if diff := cmp.Diff(r, got); diff != "" {
		t.Fatalf("record not replaced exactly (-remote +stored):\n%s", diff)
	}
}

func TestMergeScenarioKeepsNewerLocalAndInsertsNew(t *testing.T) {
	s := newTestStore(t, newLocal())
	a := mustAdd(t, s, withID(object("A", 10), "A"))
	b := withID(object("B", 1), "B")
	report := s.MergeRemote(context.Background(), []domain.PlacedObject{
		withID(object("A-remote", 5), "A"),
		b,
	})
	if report != (MergeReport{Inserted: 1, Kept: 1}) {
		t.Fatalf("unexpected report %+v", report)
	}
	want := []domain.PlacedObject{a, b}
	if diff := cmp.Diff(want, s.List()); diff != "" {
		t.Fatalf("merge result (-want +got):\n%s", diff)
	}
	if got, _ := s.Get("A"); got.LastModified.Unix() != 10 {
		t.Fatalf("A must stay at 10, got %v", got.LastModified)
	}
}

func TestMergeNeverDeletesLocalOnly(t *testing.T) {
	s := newTestStore(t, newLocal())
	mustAdd(t, s, object("local-only", 5))
	s.MergeRemote(context.Background(), nil)
	s.MergeRemote(context.Background(), []domain.PlacedObject{object("other", 5)})
	if s.Len() != 2 {
		t.Fatalf("local-only record must survive, len=%d", s.Len())
	}
}

func TestMergeSkipsInvalidRecords(t *testing.T) {
	s := newTestStore(t, newLocal())
	noID := object("x", 5)
	noID.ID = ""
	nan := object("nan", 5)
	nan.Transform.Position.X = math.NaN()
	backwards := object("backwards", 5)
	backwards.CreatedAt = time.Unix(100, 0)
	report := s.MergeRemote(context.Background(), []domain.PlacedObject{noID, nan, backwards, object("ok", 5)})
	if report != (MergeReport{Inserted: 1, Invalid: 3}) {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	s := newTestStore(t, newLocal())
	snapshot := []domain.PlacedObject{object("A", 5), object("B", 6)}
	s.MergeRemote(context.Background(), snapshot)
	first := s.List()
	report := s.MergeRemote(context.Background(), snapshot)
	if report.Changed() {
		t.Fatalf("re-merging the same snapshot must not change anything: %+v", report)
	}
	if diff := cmp.Diff(first, s.List()); diff != "" {
		t.Fatalf("collection drifted:\n%s", diff)
	}
}

func TestMergePersists(t *testing.T) {
	l := newLocal()
	s := newTestStore(t, l)
	r := object("remote", 5)
	s.MergeRemote(context.Background(), []domain.PlacedObject{r})
	restarted := newTestStore(t, l)
	if err := restarted.LoadLocal(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := restarted.Get(r.ID); !ok {
		t.Fatalf("merged record not persisted")
	}
}

// countingLocal counts Save calls on top of an in-memory local store.
type countingLocal struct {
	LocalStore
	mu    sync.Mutex
	saves int
}

func (c *countingLocal) Save(ctx context.Context, data []byte) error {
	c.mu.Lock()
	c.saves++
	c.mu.Unlock()
	return c.LocalStore.Save(ctx, data)
}

func (c *countingLocal) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}

func TestMergeSavesOnlyWhenChanged(t *testing.T) {
	l := &countingLocal{LocalStore: newLocal()}
	s := newTestStore(t, l)
	a := mustAdd(t, s, object("A", 5))
	base := l.count()

	s.MergeRemote(context.Background(), nil)
	s.MergeRemote(context.Background(), []domain.PlacedObject{a})
	stale := a
	stale.LastModified = a.LastModified.Add(-time.Hour)
	s.MergeRemote(context.Background(), []domain.PlacedObject{stale})
	if got := l.count(); got != base {
		t.Fatalf("unchanged merges must not rewrite the local blob, saves=%d want %d", got, base)
	}

	s.MergeRemote(context.Background(), []domain.PlacedObject{object("B", 6)})
	if got := l.count(); got != base+1 {
		t.Fatalf("changed merge must save once, saves=%d want %d", got, base+1)
	}
}
