package core

import "time"

// SyncState is the coarse remote-sync indicator.
type SyncState string

const (
	// SyncIdle means no remote request is outstanding.
	SyncIdle SyncState = "idle"
	// SyncSyncing means a remote push or pull is in flight.
	SyncSyncing SyncState = "syncing"
	// SyncSuccess means the last remote request succeeded.
	SyncSuccess SyncState = "success"
	// SyncFailed means the last remote request failed; see SyncStatus.Reason.
	SyncFailed SyncState = "failed"
)

// SyncStatus is one transition of the sync state machine.
type SyncStatus struct {
	State  SyncState `json:"state"`
	Reason string    `json:"reason,omitempty"`
	// Op names the remote job that produced the transition.
	Op string    `json:"op,omitempty"`
	At time.Time `json:"at"`
}

func (s SyncStatus) String() string {
	if s.State == SyncFailed && s.Reason != "" {
		return string(s.State) + "(" + s.Reason + ")"
	}
	return string(s.State)
}

type subscription[T any] struct {
	id uint64
	fn func(T)
}

// subscribers is guarded by the store mutex.
type subscribers[T any] struct {
	next uint64
	subs []subscription[T]
}

func (s *subscribers[T]) add(fn func(T)) uint64 {
	s.next++
	s.subs = append(s.subs, subscription[T]{id: s.next, fn: fn})
	return s.next
}

func (s *subscribers[T]) remove(id uint64) {
	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return
		}
	}
}

func (s *subscribers[T]) snapshot() []func(T) {
	out := make([]func(T), len(s.subs))
	for i, sub := range s.subs {
		out[i] = sub.fn
	}
	return out
}
