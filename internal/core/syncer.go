package core

import (
	"sync"

	"placekit/internal/remote"
	"placekit/pkg/domain"
)

type jobKind string

const (
	jobPush      jobKind = "push"
	jobDelete    jobKind = "delete"
	jobDeleteAll jobKind = "delete_all"
	jobPull      jobKind = "pull"
	jobBarrier   jobKind = "barrier"
)

// job is one best-effort remote request. gen ties it to the remote that was
// enabled when it was queued.
type job struct {
	kind   jobKind
	gen    uint64
	remote remote.Store
	obj    domain.PlacedObject
	id     string
	done   chan struct{}
}

// syncer runs jobs one at a time on a single goroutine. The queue is
// unbounded so enqueue never blocks a caller.
type syncer struct {
	mu     sync.Mutex
	queue  []job
	signal chan struct{}
	closed bool
	// inflight is true while a non-barrier job runs.
	inflight bool
	done     chan struct{}
	exec     func(job)
}

func newSyncer(exec func(job)) *syncer {
	s := &syncer{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		exec:   exec,
	}
	go s.loop()
	return s
}

func (s *syncer) enqueue(j job) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, j)
	s.mu.Unlock()
	s.wake()
	return true
}

// pending counts queued jobs plus the one running, barriers excluded.
func (s *syncer) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.queue)
	if s.inflight {
		n++
	}
	return n
}

func (s *syncer) wake() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *syncer) loop() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 {
			if s.closed {
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
			<-s.signal
			s.mu.Lock()
		}
		j := s.queue[0]
		s.queue[0] = job{}
		s.queue = s.queue[1:]
		s.inflight = j.kind != jobBarrier
		s.mu.Unlock()
		s.exec(j)
		s.mu.Lock()
		s.inflight = false
		s.mu.Unlock()
	}
}

// close stops accepting jobs, lets the worker drain what is queued, and waits
// for it to exit.
func (s *syncer) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wake()
	<-s.done
}
