package handler

import (
	"sync"

	"vendry/internal/identity/models"
	"vendry/internal/onboarding/catalog"
	"vendry/internal/onboarding/draft"
	"vendry/internal/onboarding/wizard"
	id "vendry/pkg/domain"
)

// session is one live wizard attempt: the controller plus the blob arena its
// draft's file references point into. Both die together when the session is
// dropped.
type session struct {
	controller *wizard.Controller
	blobs      *draft.MemoryBlobRegistry
}

// registry keeps live wizard sessions in memory. Authenticated sessions key
// by user ID and flush to the durable profile; anonymous sessions key by a
// client-held wizard session ID and never touch storage.
type registry struct {
	mu       sync.Mutex
	catalog  *catalog.Catalog
	sessions map[string]*session
}

func newRegistry(c *catalog.Catalog) *registry {
	return &registry{catalog: c, sessions: make(map[string]*session)}
}

// anonymous returns (creating if needed) the memory-only session for a
// wizard session ID.
func (r *registry) anonymous(key string) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions["anon:"+key]; ok {
		return s
	}
	blobs := draft.NewMemoryBlobRegistry()
	s := &session{
		controller: wizard.New(r.catalog, draft.NewStore(blobs), nil),
		blobs:      blobs,
	}
	r.sessions["anon:"+key] = s
	return s
}

// forUser returns (creating if needed) the session for an authenticated
// user, seeded from the persisted onboarding state so a reload resumes at
// the last flushed question with every flushed answer intact.
func (r *registry) forUser(userID id.UserID, onboarding *models.OnboardingState, flusher wizard.Flusher) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := "user:" + userID.String()
	if s, ok := r.sessions[key]; ok {
		return s
	}

	blobs := draft.NewMemoryBlobRegistry()
	s := &session{blobs: blobs}
	if onboarding != nil {
		s.controller = wizard.New(r.catalog, draft.NewStoreFrom(onboarding.Draft, blobs), flusher)
		s.controller.Resume(
			onboarding.CurrentStep,
			onboarding.CurrentQuestion,
			onboarding.Status == models.OnboardingCompleted,
		)
	} else {
		s.controller = wizard.New(r.catalog, draft.NewStore(blobs), flusher)
	}
	r.sessions[key] = s
	return s
}

// drop removes a user's session so the next request rebuilds it from the
// persisted profile.
func (r *registry) drop(userID id.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, "user:"+userID.String())
}

// adopt moves an anonymous session under a user key, carrying the in-memory
// draft across authentication. The caller flushes it so the durable profile
// picks up the pre-auth answers.
func (r *registry) adopt(anonKey string, userID id.UserID, flusher wizard.Flusher) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions["anon:"+anonKey]
	if !ok {
		return nil, false
	}
	delete(r.sessions, "anon:"+anonKey)
	s.controller.SetFlusher(flusher)
	r.sessions["user:"+userID.String()] = s
	return s, true
}
