package remote

import (
	"placekit/internal/infra/remote/memory"
)

// MemoryStore is the in-process backend with fault injection hooks.
type MemoryStore = memory.Store

// NewMemory returns an empty in-process record store.
func NewMemory() *MemoryStore { return memory.New() }
