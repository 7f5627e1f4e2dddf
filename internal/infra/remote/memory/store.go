// Package memory implements an in-process remote record store for tests and
// single-process demos.
package memory

import (
	"context"
	"fmt"
	"sync"

	"placekit/internal/remote/core"
	"placekit/pkg/domain"
)

// Hook runs before every operation. Returning an error fails the operation
// as if the remote were unreachable; blocking delays it.
type Hook func(ctx context.Context, op string) error

// Store implements core.Store backed by process memory.
type Store struct {
	mu      sync.RWMutex
	records map[string]map[string]domain.PlacedObject
	hook    Hook
	calls   map[string]int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		records: make(map[string]map[string]domain.PlacedObject),
		calls:   make(map[string]int),
	}
}

// Driver returns the remote driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverMemory }

// SetHook installs h, replacing any previous hook. Nil removes it.
func (s *Store) SetHook(h Hook) {
	s.mu.Lock()
	s.hook = h
	s.mu.Unlock()
}

// SetUnavailable makes every subsequent operation fail with err wrapped as a
// RemoteUnavailableError. Nil restores normal behavior.
func (s *Store) SetUnavailable(err error) {
	if err == nil {
		s.SetHook(nil)
		return
	}
	s.SetHook(func(context.Context, string) error { return err })
}

// Calls returns how many times op has been invoked.
func (s *Store) Calls(op string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[op]
}

func (s *Store) before(ctx context.Context, op string) error {
	s.mu.Lock()
	s.calls[op]++
	h := s.hook
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return domain.Unavailable(string(core.DriverMemory), op, err)
	}
	if h == nil {
		return nil
	}
	return domain.Unavailable(string(core.DriverMemory), op, h(ctx, op))
}

// FetchAll returns every record of recordType ordered by id.
func (s *Store) FetchAll(ctx context.Context, recordType string) ([]domain.PlacedObject, error) {
	if err := s.before(ctx, "fetch"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PlacedObject, 0, len(s.records[recordType]))
	for _, obj := range s.records[recordType] {
		out = append(out, obj)
	}
	core.SortByID(out)
	return out, nil
}

// Upsert creates or replaces a record.
func (s *Store) Upsert(ctx context.Context, recordType string, obj domain.PlacedObject) error {
	if obj.ID == "" {
		return fmt.Errorf("upsert %s: empty id", recordType)
	}
	if err := s.before(ctx, "upsert"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.records[recordType]
	if !ok {
		bucket = make(map[string]domain.PlacedObject)
		s.records[recordType] = bucket
	}
	bucket[obj.ID] = obj
	return nil
}

// Delete removes one record.
func (s *Store) Delete(ctx context.Context, recordType, id string) (bool, error) {
	if err := s.before(ctx, "delete"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[recordType][id]; !ok {
		return false, nil
	}
	delete(s.records[recordType], id)
	return true, nil
}

// DeleteAll removes every record of recordType.
func (s *Store) DeleteAll(ctx context.Context, recordType string) (int, error) {
	if err := s.before(ctx, "delete_all"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.records[recordType])
	delete(s.records, recordType)
	return n, nil
}
