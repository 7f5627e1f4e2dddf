package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"placekit/internal/codec"
	"placekit/internal/remote"
	"placekit/pkg/domain"
)

// LocalStore persists the serialized collection as one blob. Load returns
// nil data and a nil error when nothing has been saved yet.
type LocalStore interface {
	Save(ctx context.Context, data []byte) error
	Load(ctx context.Context) ([]byte, error)
}

// PlacedObjectStore owns the authoritative ordered collection of placed
// objects. Every mutation is serialized under mu, written through to the
// local store, and mirrored to the remote store by the sync worker when
// remote sync is enabled.
type PlacedObjectStore struct {
	mu      sync.Mutex
	objects []domain.PlacedObject
	index   map[string]int

	local  LocalStore
	remote remote.Store
	gen    uint64
	status SyncStatus

	statusSubs subscribers[SyncStatus]
	changeSubs subscribers[domain.Change]

	opts      storeOptions
	syncer    *syncer
	closeOnce sync.Once
}

// NewPlacedObjectStore constructs an empty store writing through to local.
// A nil local store keeps the collection in memory only. Call Close to stop
// the sync worker.
func NewPlacedObjectStore(local LocalStore, opts ...Option) *PlacedObjectStore {
	o := storeOptions{
		clock:       ClockFunc(time.Now),
		logger:      noopLogger{},
		metrics:     noopMetrics{},
		tracer:      noopTracer{},
		syncTimeout: defaultSyncTimeout,
		recordType:  domain.RecordType,
	}
	for _, opt := range opts {
		opt(&o)
	}
	s := &PlacedObjectStore{
		index: make(map[string]int),
		local: local,
		opts:  o,
	}
	s.status = SyncStatus{State: SyncIdle, At: s.now()}
	s.syncer = newSyncer(s.runJob)
	return s
}

// Close drains queued remote jobs and stops the sync worker. It is safe to
// call more than once.
func (s *PlacedObjectStore) Close() error {
	s.closeOnce.Do(s.syncer.close)
	return nil
}

func (s *PlacedObjectStore) now() time.Time {
	return s.opts.clock.Now().UTC()
}

// observe starts a span and returns the completion hook recording metrics.
func (s *PlacedObjectStore) observe(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.opts.tracer.Start(ctx, op)
	return ctx, func(err error) {
		span.End(err)
		s.opts.metrics.Observe(ctx, op, err == nil, time.Since(start))
	}
}

// Get returns the record with id.
func (s *PlacedObjectStore) Get(id string) (domain.PlacedObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return domain.PlacedObject{}, false
	}
	return s.objects[i], true
}

// Resolve looks up the record a handle refers to.
func (s *PlacedObjectStore) Resolve(h domain.Handle) (domain.PlacedObject, bool) {
	return s.Get(h.ID)
}

// List returns a copy of the collection in insertion order.
func (s *PlacedObjectStore) List() []domain.PlacedObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.PlacedObject, len(s.objects))
	copy(out, s.objects)
	return out
}

// Len reports the number of records held.
func (s *PlacedObjectStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// Add appends obj. Zero timestamps are stamped from the store clock. An id
// already present is rejected with a DuplicateIDError.
func (s *PlacedObjectStore) Add(ctx context.Context, obj domain.PlacedObject) (_ domain.PlacedObject, err error) {
	ctx, done := s.observe(ctx, "add")
	defer func() { done(err) }()

	if obj.CreatedAt.IsZero() {
		obj.CreatedAt = s.now()
	}
	if obj.LastModified.IsZero() {
		obj.LastModified = obj.CreatedAt
	}
	if err := obj.Validate(); err != nil {
		s.opts.logger.Warn("rejecting invalid placed object", "id", obj.ID, "error", err)
		return domain.PlacedObject{}, fmt.Errorf("add placed object: %w", err)
	}

	s.mu.Lock()
	if _, exists := s.index[obj.ID]; exists {
		s.mu.Unlock()
		s.opts.logger.Error("duplicate placed object id", "id", obj.ID)
		return domain.PlacedObject{}, domain.DuplicateIDError{ID: obj.ID}
	}
	s.index[obj.ID] = len(s.objects)
	s.objects = append(s.objects, obj)
	s.persistLocked(ctx)
	s.enqueueLocked(job{kind: jobPush, obj: obj})
	fns := s.changeSubs.snapshot()
	s.mu.Unlock()

	after := obj
	notify(fns, domain.Change{Action: domain.ActionCreate, ID: obj.ID, After: &after})
	return obj, nil
}

// Update replaces the record with obj.ID. ID and CreatedAt are kept from the
// stored record and LastModified is stamped strictly after its previous value.
// An absent id is a logged no-op reported as NotFoundError.
func (s *PlacedObjectStore) Update(ctx context.Context, obj domain.PlacedObject) (_ domain.PlacedObject, err error) {
	ctx, done := s.observe(ctx, "update")
	defer func() { done(err) }()

	s.mu.Lock()
	i, ok := s.index[obj.ID]
	if !ok {
		s.mu.Unlock()
		s.opts.logger.Warn("update of unknown placed object", "id", obj.ID)
		return domain.PlacedObject{}, domain.NotFoundError{ID: obj.ID}
	}
	prev := s.objects[i]
	obj.CreatedAt = prev.CreatedAt
	obj.LastModified = nextModified(prev.LastModified, s.now())
	if err := obj.Validate(); err != nil {
		s.mu.Unlock()
		s.opts.logger.Warn("rejecting invalid placed object", "id", obj.ID, "error", err)
		return domain.PlacedObject{}, fmt.Errorf("update placed object: %w", err)
	}
	s.objects[i] = obj
	s.persistLocked(ctx)
	s.enqueueLocked(job{kind: jobPush, obj: obj})
	fns := s.changeSubs.snapshot()
	s.mu.Unlock()

	after := obj
	notify(fns, domain.Change{Action: domain.ActionUpdate, ID: obj.ID, Before: &prev, After: &after})
	return obj, nil
}

// nextModified returns now, or one nanosecond past prev when the clock has
// not advanced beyond it.
func nextModified(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Nanosecond)
}

// Remove deletes the record with id. It reports false, and logs, when the id
// is absent.
func (s *PlacedObjectStore) Remove(ctx context.Context, id string) (_ bool, err error) {
	ctx, done := s.observe(ctx, "remove")
	defer func() { done(err) }()
	if id == "" {
		return false, errors.New("remove placed object: empty id")
	}

	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		s.opts.logger.Warn("remove of unknown placed object", "id", id, "error", domain.NotFoundError{ID: id})
		return false, nil
	}
	prev := s.objects[i]
	s.objects = append(s.objects[:i], s.objects[i+1:]...)
	s.reindexLocked()
	s.persistLocked(ctx)
	s.enqueueLocked(job{kind: jobDelete, id: id})
	fns := s.changeSubs.snapshot()
	s.mu.Unlock()

	notify(fns, domain.Change{Action: domain.ActionDelete, ID: id, Before: &prev})
	return true, nil
}

// Clear empties the collection and returns how many records were dropped.
func (s *PlacedObjectStore) Clear(ctx context.Context) int {
	ctx, done := s.observe(ctx, "clear")
	defer done(nil)

	s.mu.Lock()
	n := len(s.objects)
	s.objects = nil
	s.index = make(map[string]int)
	s.persistLocked(ctx)
	s.enqueueLocked(job{kind: jobDeleteAll})
	fns := s.changeSubs.snapshot()
	s.mu.Unlock()

	notify(fns, domain.Change{Action: domain.ActionClear})
	return n
}

// LoadLocal replaces the collection with the local store's contents. A
// missing blob yields an empty collection. An unreadable or malformed blob
// also yields an empty collection; the error is logged and returned for the
// caller's information only.
func (s *PlacedObjectStore) LoadLocal(ctx context.Context) (err error) {
	ctx, done := s.observe(ctx, "load_local")
	defer func() { done(err) }()

	var objects []domain.PlacedObject
	if s.local != nil {
		raw, loadErr := s.local.Load(ctx)
		switch {
		case loadErr != nil:
			s.opts.logger.Error("local store read failed; starting empty", "error", loadErr)
			err = loadErr
		case raw != nil:
			env, decodeErr := codec.Decode(raw)
			if decodeErr != nil {
				s.opts.logger.Error("local store blob unreadable; starting empty", "error", decodeErr)
				err = decodeErr
			} else {
				objects = env.Objects
			}
		}
	}

	s.mu.Lock()
	s.objects = objects
	s.reindexLocked()
	fns := s.changeSubs.snapshot()
	s.mu.Unlock()

	s.opts.logger.Info("local collection restored", "count", len(objects))
	notify(fns, domain.Change{Action: domain.ActionLoad})
	return err
}

// ReloadLocal re-reads the local blob and adopts its contents when they
// differ from the in-memory collection. It reports whether the collection
// changed. A read or decode failure keeps the current collection. Nothing is
// written back.
func (s *PlacedObjectStore) ReloadLocal(ctx context.Context) (changed bool, err error) {
	ctx, done := s.observe(ctx, "reload_local")
	defer func() { done(err) }()

	if s.local == nil {
		return false, nil
	}
	raw, err := s.local.Load(ctx)
	if err != nil {
		s.opts.logger.Warn("local store reload failed; keeping collection", "error", err)
		return false, err
	}
	var objects []domain.PlacedObject
	if raw != nil {
		env, decodeErr := codec.Decode(raw)
		if decodeErr != nil {
			s.opts.logger.Warn("local store blob unreadable; keeping collection", "error", decodeErr)
			return false, decodeErr
		}
		objects = env.Objects
	}

	s.mu.Lock()
	if sameObjects(s.objects, objects) {
		s.mu.Unlock()
		return false, nil
	}
	s.objects = objects
	s.reindexLocked()
	fns := s.changeSubs.snapshot()
	s.mu.Unlock()

	s.opts.logger.Info("local collection reloaded", "count", len(objects))
	notify(fns, domain.Change{Action: domain.ActionLoad})
	return true, nil
}

func sameObjects(a, b []domain.PlacedObject) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func (s *PlacedObjectStore) reindexLocked() {
	s.index = make(map[string]int, len(s.objects))
	for i, obj := range s.objects {
		s.index[obj.ID] = i
	}
}

// persistLocked writes the whole collection through to the local store.
// Failures are logged; the in-memory collection stays authoritative.
func (s *PlacedObjectStore) persistLocked(ctx context.Context) {
	if s.local == nil {
		return
	}
	blob, err := codec.Encode(s.objects, s.now(), codec.Options{Compress: s.opts.compress, RecordType: s.opts.recordType})
	if err != nil {
		s.opts.logger.Error("encode collection failed", "error", err)
		return
	}
	if err := s.local.Save(ctx, blob); err != nil {
		s.opts.logger.Error("local store write failed", "error", err, "count", len(s.objects))
	}
}

// OnChange registers fn for committed mutations and returns a function that
// unregisters it. Callbacks run synchronously after the store lock is
// released and must not block.
func (s *PlacedObjectStore) OnChange(fn func(domain.Change)) func() {
	s.mu.Lock()
	id := s.changeSubs.add(fn)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.changeSubs.remove(id)
		s.mu.Unlock()
	}
}

func notify[T any](fns []func(T), v T) {
	for _, fn := range fns {
		fn(v)
	}
}
