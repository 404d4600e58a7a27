package draft

import (
	"sync"

	"github.com/google/uuid"
)

// BlobRef is an opaque handle to file bytes held outside the draft. Refs are
// session-scoped: after a reload a ref may no longer resolve, which callers
// must tolerate.
type BlobRef string

// BlobRegistry is an arena mapping refs to ephemeral byte buffers. The draft
// stores refs only, keeping the answer record serializable.
type BlobRegistry interface {
	Put(data []byte) BlobRef
	Open(ref BlobRef) ([]byte, bool)
	Release(ref BlobRef)
}

// MemoryBlobRegistry is the in-process BlobRegistry.
type MemoryBlobRegistry struct {
	mu    sync.RWMutex
	blobs map[BlobRef][]byte
}

func NewMemoryBlobRegistry() *MemoryBlobRegistry {
	return &MemoryBlobRegistry{blobs: make(map[BlobRef][]byte)}
}

func (r *MemoryBlobRegistry) Put(data []byte) BlobRef {
	ref := BlobRef(uuid.NewString())
	buf := append([]byte{}, data...)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blobs[ref] = buf
	return ref
}

func (r *MemoryBlobRegistry) Open(ref BlobRef) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.blobs[ref]
	return data, ok
}

func (r *MemoryBlobRegistry) Release(ref BlobRef) {
	if ref == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.blobs, ref)
}

// Len reports the number of live blobs. Exposed for tests and diagnostics.
func (r *MemoryBlobRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.blobs)
}
