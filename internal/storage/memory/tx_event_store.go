package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"realestate-token-hub/internal/domain"
	"realestate-token-hub/internal/storage"
)

// TxEventStore is an in-memory implementation of storage.TxEventStore.
type TxEventStore struct {
	mu     sync.RWMutex
	events map[common.Hash][]*domain.TxEvent // per hash, append order
	order  []common.Hash                     // first-seen order
}

// NewTxEventStore creates a new in-memory transaction journal.
func NewTxEventStore() *TxEventStore {
	return &TxEventStore{events: make(map[common.Hash][]*domain.TxEvent)}
}

// Insert appends a status event. Returns ErrDuplicateKey if (hash, status) exists.
func (s *TxEventStore) Insert(_ context.Context, e *domain.TxEvent) error {
	if e == nil || e.Hash == (common.Hash{}) || e.Status == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, seen := s.events[e.Hash]
	for _, prev := range existing {
		if prev.Status == e.Status {
			return storage.ErrDuplicateKey
		}
	}

	eventCopy := *e
	s.events[e.Hash] = append(existing, &eventCopy)
	if !seen {
		s.order = append(s.order, e.Hash)
	}
	return nil
}

// GetByHash returns all events of a transaction ordered by timestamp ASC.
func (s *TxEventStore) GetByHash(_ context.Context, hash common.Hash) ([]*domain.TxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events, exists := s.events[hash]
	if !exists {
		return nil, storage.ErrNotFound
	}

	result := make([]*domain.TxEvent, len(events))
	for i, e := range events {
		eventCopy := *e
		result[i] = &eventCopy
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})
	return result, nil
}

// Latest returns the most recent status event of every transaction,
// newest first.
func (s *TxEventStore) Latest(_ context.Context) ([]*domain.TxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TxEvent, 0, len(s.order))
	for _, hash := range s.order {
		var latest *domain.TxEvent
		for _, e := range s.events[hash] {
			if latest == nil || e.Supersedes(latest) {
				latest = e
			}
		}
		eventCopy := *latest
		result = append(result, &eventCopy)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp > result[j].Timestamp
		}
		return result[i].Hash.Hex() < result[j].Hash.Hex()
	})
	return result, nil
}

var _ storage.TxEventStore = (*TxEventStore)(nil)
