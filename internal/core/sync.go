package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"placekit/internal/remote"
	"placekit/pkg/domain"
)

// EnableRemote starts mirroring to r. A pull is queued immediately: the
// remote snapshot is merged in, and local records the remote lacks or holds
// an older copy of are pushed back. Subsequent mutations push as they
// commit. The call never waits on the network.
func (s *PlacedObjectStore) EnableRemote(ctx context.Context, r remote.Store) (err error) {
	_, done := s.observe(ctx, "enable_remote")
	defer func() { done(err) }()
	if r == nil {
		return errors.New("enable remote: nil store")
	}
	s.mu.Lock()
	s.remote = r
	s.gen++
	s.enqueueLocked(job{kind: jobPull})
	s.mu.Unlock()
	s.opts.logger.Info("remote sync enabled", "driver", string(r.Driver()), "record_type", s.opts.recordType)
	return nil
}

// DisableRemote stops mirroring. Jobs queued for the previous remote are
// skipped.
func (s *PlacedObjectStore) DisableRemote() {
	s.mu.Lock()
	was := s.remote
	s.remote = nil
	s.gen++
	s.mu.Unlock()
	if was != nil {
		s.opts.logger.Info("remote sync disabled", "driver", string(was.Driver()))
	}
}

// RemoteEnabled reports whether a remote is attached.
func (s *PlacedObjectStore) RemoteEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote != nil
}

// Pull queues a manual refresh from the remote. It reports false when
// remote sync is disabled.
func (s *PlacedObjectStore) Pull() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enqueueLocked(job{kind: jobPull})
}

// PushAll queues an upsert of every local record. It returns the number of
// pushes queued.
func (s *PlacedObjectStore) PushAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, obj := range s.objects {
		if s.enqueueLocked(job{kind: jobPush, obj: obj}) {
			n++
		}
	}
	return n
}

// Flush waits until every job queued so far, and any follow-up pushes they
// queue, has completed, or until ctx is done.
func (s *PlacedObjectStore) Flush(ctx context.Context) error {
	for {
		barrier := job{kind: jobBarrier, done: make(chan struct{})}
		if !s.syncer.enqueue(barrier) {
			return nil
		}
		select {
		case <-barrier.done:
		case <-ctx.Done():
			return ctx.Err()
		}
		if s.syncer.pending() == 0 {
			return nil
		}
	}
}

// Status returns the current sync status.
func (s *PlacedObjectStore) Status() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Subscribe registers fn for sync status transitions and returns a function
// that unregisters it. Transitions are delivered in order from the sync
// worker goroutine.
func (s *PlacedObjectStore) Subscribe(fn func(SyncStatus)) func() {
	s.mu.Lock()
	id := s.statusSubs.add(fn)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.statusSubs.remove(id)
		s.mu.Unlock()
	}
}

// enqueueLocked stamps j with the active remote and queues it. It is a
// no-op returning false when remote sync is disabled.
func (s *PlacedObjectStore) enqueueLocked(j job) bool {
	if s.remote == nil {
		return false
	}
	j.remote = s.remote
	j.gen = s.gen
	if !s.syncer.enqueue(j) {
		s.opts.logger.Warn("sync worker closed; dropping remote job", "job", string(j.kind), "id", j.id+j.obj.ID)
		return false
	}
	return true
}

func (s *PlacedObjectStore) current(j job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return j.gen == s.gen && s.remote != nil
}

// setStatus applies a transition under the store lock and notifies
// subscribers once it is released.
func (s *PlacedObjectStore) setStatus(state SyncState, op, reason string) {
	s.mu.Lock()
	st := SyncStatus{State: state, Op: op, Reason: reason, At: s.now()}
	s.status = st
	fns := s.statusSubs.snapshot()
	s.mu.Unlock()
	notify(fns, st)
}

// runJob executes one remote job on the sync worker goroutine.
func (s *PlacedObjectStore) runJob(j job) {
	if j.kind == jobBarrier {
		close(j.done)
		return
	}
	if !s.current(j) {
		s.opts.logger.Debug("skipping stale remote job", "job", string(j.kind))
		return
	}
	op := "remote_" + string(j.kind)
	if s.Status().State != SyncIdle {
		s.setStatus(SyncIdle, op, "")
	}
	s.setStatus(SyncSyncing, op, "")

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.syncTimeout)
	defer cancel()
	ctx, done := s.observe(ctx, op)
	err := s.execute(ctx, j)
	done(err)

	if err != nil {
		s.opts.logger.Warn("remote sync failed", "job", string(j.kind), "driver", string(j.remote.Driver()), "error", err)
		s.setStatus(SyncFailed, op, err.Error())
		return
	}
	s.setStatus(SyncSuccess, op, "")
}

func (s *PlacedObjectStore) execute(ctx context.Context, j job) error {
	recordType := s.opts.recordType
	switch j.kind {
	case jobPush:
		return j.remote.Upsert(ctx, recordType, j.obj)
	case jobDelete:
		_, err := j.remote.Delete(ctx, recordType, j.id)
		return err
	case jobDeleteAll:
		_, err := j.remote.DeleteAll(ctx, recordType)
		return err
	case jobPull:
		if s.opts.sharedLocal {
			return s.pullShared(ctx, j, recordType)
		}
		records, err := j.remote.FetchAll(ctx, recordType)
		if err != nil {
			return err
		}
		report := s.MergeRemote(ctx, records)
		pushed := s.pushBack(j, records)
		s.opts.logger.Info("remote pull merged",
			"fetched", len(records), "inserted", report.Inserted, "replaced", report.Replaced, "pushed_back", pushed)
		return nil
	}
	return nil
}

// pullShared is the pull used when other processes write the local blob. The
// exchange runs under the local lock: the blob is re-read before the merge
// and push-backs are sent inline, so a stale push never lands after the lock
// is released.
func (s *PlacedObjectStore) pullShared(ctx context.Context, j job, recordType string) error {
	if l := s.opts.localLock; l != nil {
		if err := l.Lock(ctx); err != nil {
			return fmt.Errorf("lock local collection: %w", err)
		}
		defer func() {
			if err := l.Unlock(); err != nil {
				s.opts.logger.Warn("unlock local collection failed", "error", err)
			}
		}()
	}
	records, err := j.remote.FetchAll(ctx, recordType)
	if err != nil {
		return err
	}
	if _, err := s.ReloadLocal(ctx); err != nil {
		return fmt.Errorf("reload local collection: %w", err)
	}
	report := s.MergeRemote(ctx, records)
	s.mu.Lock()
	stale := s.staleRemoteLocked(j, records)
	s.mu.Unlock()
	for _, obj := range stale {
		if err := j.remote.Upsert(ctx, recordType, obj); err != nil {
			return err
		}
	}
	s.opts.logger.Info("remote pull merged",
		"fetched", len(records), "inserted", report.Inserted, "replaced", report.Replaced, "pushed_back", len(stale))
	return nil
}

// pushBack queues upserts for local records the snapshot lacks or holds an
// older copy of.
func (s *PlacedObjectStore) pushBack(j job, snapshot []domain.PlacedObject) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, obj := range s.staleRemoteLocked(j, snapshot) {
		if s.enqueueLocked(job{kind: jobPush, obj: obj}) {
			n++
		}
	}
	return n
}

// staleRemoteLocked returns the local records the snapshot lacks or holds an
// older copy of. It returns nothing once j's remote has been replaced.
func (s *PlacedObjectStore) staleRemoteLocked(j job, snapshot []domain.PlacedObject) []domain.PlacedObject {
	if j.gen != s.gen || s.remote == nil {
		return nil
	}
	remoteByID := make(map[string]time.Time, len(snapshot))
	for _, r := range snapshot {
		remoteByID[r.ID] = r.LastModified
	}
	var stale []domain.PlacedObject
	for _, obj := range s.objects {
		if at, ok := remoteByID[obj.ID]; ok && !obj.LastModified.After(at) {
			continue
		}
		stale = append(stale, obj)
	}
	return stale
}
