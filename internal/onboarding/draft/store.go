package draft

import (
	"sync"

	dErrors "vendry/pkg/domain-errors"
)

// Store holds the mutable draft for one onboarding attempt. All mutations are
// synchronous and produce immutable snapshots; nothing here touches durable
// storage; the wizard flushes explicitly so typing and navigation stay fast.
type Store struct {
	mu    sync.Mutex
	draft Draft
	blobs BlobRegistry
}

// NewStore creates a Store seeded with a structurally complete empty draft.
// blobs may be nil when no file handling is needed (tests, resumed sessions).
func NewStore(blobs BlobRegistry) *Store {
	return &Store{draft: New(), blobs: blobs}
}

// NewStoreFrom seeds the store with an existing draft, e.g. when resuming a
// persisted onboarding attempt.
func NewStoreFrom(d Draft, blobs BlobRegistry) *Store {
	return &Store{draft: d.Clone(), blobs: blobs}
}

// Snapshot returns a deep copy of the current draft.
func (s *Store) Snapshot() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone()
}

// Set replaces exactly one field and returns the new snapshot.
func (s *Store) Set(key FieldKey, value any) (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := s.draft.Set(key, value)
	if err != nil {
		return s.draft.Clone(), err
	}
	s.draft = next
	return next.Clone(), nil
}

// Apply merges a multi-field patch atomically and returns the new snapshot.
func (s *Store) Apply(p Patch) Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = s.draft.Apply(p)
	return s.draft.Clone()
}

// AppendFile adds a file to a file-bearing field. Multi-file fields append;
// the single-file field replaces, releasing the blob it previously held.
func (s *Store) AppendFile(key FieldKey, meta FileMeta) (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch key {
	case FieldPhotos:
		next := s.draft.Clone()
		next.Photos = append(next.Photos, meta)
		s.draft = next
		return next.Clone(), nil
	case FieldIDDocument:
		prev := s.draft.IDDocument.BlobRef
		next := s.draft.Clone()
		next.IDDocument = meta
		s.draft = next
		if prev != "" && prev != meta.BlobRef {
			s.release(prev)
		}
		return next.Clone(), nil
	default:
		return s.draft.Clone(), dErrors.Newf(dErrors.CodeInvalidInput, "field %q does not hold files", key)
	}
}

// RemoveFile removes one file by name from a file-bearing field and releases
// its blob reference so no dangling handles remain.
func (s *Store) RemoveFile(key FieldKey, name string) (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch key {
	case FieldPhotos:
		next := s.draft.Clone()
		kept := next.Photos[:0]
		var removed []BlobRef
		for _, f := range next.Photos {
			if f.Name == name {
				removed = append(removed, f.BlobRef)
				continue
			}
			kept = append(kept, f)
		}
		if len(removed) == 0 {
			return s.draft.Clone(), dErrors.Newf(dErrors.CodeNotFound, "no file named %q", name)
		}
		next.Photos = append([]FileMeta{}, kept...)
		s.draft = next
		for _, ref := range removed {
			s.release(ref)
		}
		return next.Clone(), nil
	case FieldIDDocument:
		if s.draft.IDDocument.Name != name {
			return s.draft.Clone(), dErrors.Newf(dErrors.CodeNotFound, "no file named %q", name)
		}
		ref := s.draft.IDDocument.BlobRef
		next := s.draft.Clone()
		next.IDDocument = FileMeta{}
		s.draft = next
		s.release(ref)
		return next.Clone(), nil
	default:
		return s.draft.Clone(), dErrors.Newf(dErrors.CodeInvalidInput, "field %q does not hold files", key)
	}
}

// Reset discards all answers, returning the store to a fresh draft and
// releasing every blob the old draft referenced.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.draft.Photos {
		s.release(f.BlobRef)
	}
	s.release(s.draft.IDDocument.BlobRef)
	s.draft = New()
}

func (s *Store) release(ref BlobRef) {
	if s.blobs != nil && ref != "" {
		s.blobs.Release(ref)
	}
}
