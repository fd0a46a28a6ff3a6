package memory

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"realestate-token-hub/internal/domain"
	"realestate-token-hub/internal/storage"
)

// PropertyStore is an in-memory implementation of storage.PropertyStore.
type PropertyStore struct {
	mu    sync.RWMutex
	order []common.Address
	byKey map[common.Address]*domain.Property
}

// NewPropertyStore creates a new in-memory property store.
func NewPropertyStore() *PropertyStore {
	return &PropertyStore{byKey: make(map[common.Address]*domain.Property)}
}

// ReplaceAll swaps the snapshot. Order is preserved.
func (s *PropertyStore) ReplaceAll(_ context.Context, props []*domain.Property) error {
	order := make([]common.Address, 0, len(props))
	byKey := make(map[common.Address]*domain.Property, len(props))
	for _, p := range props {
		if p == nil {
			return storage.ErrInvalidInput
		}
		if _, exists := byKey[p.TokenAddress]; !exists {
			order = append(order, p.TokenAddress)
		}
		byKey[p.TokenAddress] = copyProperty(p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = order
	s.byKey = byKey
	return nil
}

// Upsert replaces or appends a single property.
func (s *PropertyStore) Upsert(_ context.Context, p *domain.Property) error {
	if p == nil || p.TokenAddress == (common.Address{}) {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byKey[p.TokenAddress]; !exists {
		s.order = append(s.order, p.TokenAddress)
	}
	s.byKey[p.TokenAddress] = copyProperty(p)
	return nil
}

// GetAll returns the snapshot in factory order.
func (s *PropertyStore) GetAll(_ context.Context) ([]*domain.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Property, 0, len(s.order))
	for _, addr := range s.order {
		result = append(result, copyProperty(s.byKey[addr]))
	}
	return result, nil
}

// GetByToken returns a property by token address. Returns ErrNotFound if not cached.
func (s *PropertyStore) GetByToken(_ context.Context, token common.Address) (*domain.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.byKey[token]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyProperty(p), nil
}

func copyProperty(p *domain.Property) *domain.Property {
	c := *p
	c.TotalSupply = copyBig(p.TotalSupply)
	return &c
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

var _ storage.PropertyStore = (*PropertyStore)(nil)
