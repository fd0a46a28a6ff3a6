package memory

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"realestate-token-hub/internal/domain"
	"realestate-token-hub/internal/storage"
)

// ElectionStore is an in-memory implementation of storage.ElectionStore.
type ElectionStore struct {
	mu        sync.RWMutex
	elections map[common.Address]*domain.Election
}

// NewElectionStore creates a new in-memory election store.
func NewElectionStore() *ElectionStore {
	return &ElectionStore{elections: make(map[common.Address]*domain.Election)}
}

// Put replaces the election of e.TokenAddress.
func (s *ElectionStore) Put(_ context.Context, e *domain.Election) error {
	if e == nil || e.TokenAddress == (common.Address{}) {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.elections[e.TokenAddress] = copyElection(e)
	return nil
}

// Get returns the election of a token. Returns ErrNotFound if not cached.
func (s *ElectionStore) Get(_ context.Context, token common.Address) (*domain.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.elections[token]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyElection(e), nil
}

func copyElection(e *domain.Election) *domain.Election {
	c := *e
	c.Candidates = make([]*domain.Candidate, len(e.Candidates))
	for i, cand := range e.Candidates {
		cc := *cand
		cc.Votes = copyBig(cand.Votes)
		c.Candidates[i] = &cc
	}
	return &c
}

var _ storage.ElectionStore = (*ElectionStore)(nil)
