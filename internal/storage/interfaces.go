// Package storage defines the cache and journal stores. Snapshot stores hold
// the last successful fetch of on-chain state and are replaced wholesale on
// refresh; the transaction journal is append-only.
package storage

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"realestate-token-hub/internal/domain"
)

// PropertyStore caches the factory's property list.
type PropertyStore interface {
	// ReplaceAll swaps the snapshot. Order is preserved.
	ReplaceAll(ctx context.Context, props []*domain.Property) error

	// Upsert replaces or appends a single property.
	Upsert(ctx context.Context, p *domain.Property) error

	// GetAll returns the snapshot in factory order.
	GetAll(ctx context.Context) ([]*domain.Property, error)

	// GetByToken returns a property by token address. Returns ErrNotFound if not cached.
	GetByToken(ctx context.Context, token common.Address) (*domain.Property, error)
}

// ListingStore caches the marketplace's active listings.
type ListingStore interface {
	// ReplaceAll swaps the snapshot.
	ReplaceAll(ctx context.Context, listings []*domain.Listing) error

	// GetAll returns all listings ordered by listing ID ASC.
	GetAll(ctx context.Context) ([]*domain.Listing, error)

	// GetByID returns a listing. Returns ErrNotFound if not cached.
	GetByID(ctx context.Context, id *big.Int) (*domain.Listing, error)

	// GetByToken returns the listings of a token ordered by listing ID ASC.
	GetByToken(ctx context.Context, token common.Address) ([]*domain.Listing, error)
}

// ProposalStore caches IssueDAO proposals.
type ProposalStore interface {
	// ReplaceAll swaps the snapshot.
	ReplaceAll(ctx context.Context, proposals []*domain.Proposal) error

	// GetAll returns all proposals ordered by ID ASC.
	GetAll(ctx context.Context) ([]*domain.Proposal, error)

	// GetByID returns a proposal. Returns ErrNotFound if not cached.
	GetByID(ctx context.Context, id uint64) (*domain.Proposal, error)
}

// ElectionStore caches per-token manager elections.
type ElectionStore interface {
	// Put replaces the election of e.TokenAddress.
	Put(ctx context.Context, e *domain.Election) error

	// Get returns the election of a token. Returns ErrNotFound if not cached.
	Get(ctx context.Context, token common.Address) (*domain.Election, error)
}

// TxEventStore provides access to the append-only transaction journal.
type TxEventStore interface {
	// Insert appends a status event. Returns ErrDuplicateKey if (hash, status) exists.
	Insert(ctx context.Context, e *domain.TxEvent) error

	// GetByHash returns all events of a transaction ordered by timestamp ASC.
	// Returns ErrNotFound if the hash was never journaled.
	GetByHash(ctx context.Context, hash common.Hash) ([]*domain.TxEvent, error)

	// Latest returns the most recent status event of every transaction,
	// newest first.
	Latest(ctx context.Context) ([]*domain.TxEvent, error)
}
