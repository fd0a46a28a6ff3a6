package memory

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"realestate-token-hub/internal/domain"
	"realestate-token-hub/internal/storage"
)

// ListingStore is an in-memory implementation of storage.ListingStore.
type ListingStore struct {
	mu       sync.RWMutex
	listings []*domain.Listing // sorted by listing ID
}

// NewListingStore creates a new in-memory listing store.
func NewListingStore() *ListingStore {
	return &ListingStore{}
}

// ReplaceAll swaps the snapshot.
func (s *ListingStore) ReplaceAll(_ context.Context, listings []*domain.Listing) error {
	seen := make(map[string]struct{}, len(listings))
	next := make([]*domain.Listing, 0, len(listings))
	for _, l := range listings {
		if l == nil || l.ListingID == nil {
			return storage.ErrInvalidInput
		}
		key := l.ListingID.String()
		if _, exists := seen[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
		next = append(next, copyListing(l))
	}
	sort.Slice(next, func(i, j int) bool {
		return next[i].ListingID.Cmp(next[j].ListingID) < 0
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings = next
	return nil
}

// GetAll returns all listings ordered by listing ID ASC.
func (s *ListingStore) GetAll(_ context.Context) ([]*domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Listing, 0, len(s.listings))
	for _, l := range s.listings {
		result = append(result, copyListing(l))
	}
	return result, nil
}

// GetByID returns a listing. Returns ErrNotFound if not cached.
func (s *ListingStore) GetByID(_ context.Context, id *big.Int) (*domain.Listing, error) {
	if id == nil {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.listings {
		if l.ListingID.Cmp(id) == 0 {
			return copyListing(l), nil
		}
	}
	return nil, storage.ErrNotFound
}

// GetByToken returns the listings of a token ordered by listing ID ASC.
func (s *ListingStore) GetByToken(_ context.Context, token common.Address) ([]*domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Listing
	for _, l := range s.listings {
		if l.TokenAddress == token {
			result = append(result, copyListing(l))
		}
	}
	return result, nil
}

func copyListing(l *domain.Listing) *domain.Listing {
	c := *l
	c.ListingID = copyBig(l.ListingID)
	c.Amount = copyBig(l.Amount)
	c.PricePerToken = copyBig(l.PricePerToken)
	return &c
}

var _ storage.ListingStore = (*ListingStore)(nil)
