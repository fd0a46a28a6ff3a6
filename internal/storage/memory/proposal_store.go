package memory

import (
	"context"
	"sort"
	"sync"

	"realestate-token-hub/internal/domain"
	"realestate-token-hub/internal/storage"
)

// ProposalStore is an in-memory implementation of storage.ProposalStore.
type ProposalStore struct {
	mu        sync.RWMutex
	proposals map[uint64]*domain.Proposal
}

// NewProposalStore creates a new in-memory proposal store.
func NewProposalStore() *ProposalStore {
	return &ProposalStore{proposals: make(map[uint64]*domain.Proposal)}
}

// ReplaceAll swaps the snapshot.
func (s *ProposalStore) ReplaceAll(_ context.Context, proposals []*domain.Proposal) error {
	next := make(map[uint64]*domain.Proposal, len(proposals))
	for _, p := range proposals {
		if p == nil {
			return storage.ErrInvalidInput
		}
		if _, exists := next[p.ID]; exists {
			return storage.ErrDuplicateKey
		}
		next[p.ID] = copyProposal(p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposals = next
	return nil
}

// GetAll returns all proposals ordered by ID ASC.
func (s *ProposalStore) GetAll(_ context.Context) ([]*domain.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Proposal, 0, len(s.proposals))
	for _, p := range s.proposals {
		result = append(result, copyProposal(p))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// GetByID returns a proposal. Returns ErrNotFound if not cached.
func (s *ProposalStore) GetByID(_ context.Context, id uint64) (*domain.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.proposals[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyProposal(p), nil
}

func copyProposal(p *domain.Proposal) *domain.Proposal {
	c := *p
	c.VotesFor = copyBig(p.VotesFor)
	c.VotesAgainst = copyBig(p.VotesAgainst)
	return &c
}

var _ storage.ProposalStore = (*ProposalStore)(nil)
