package postgres

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"realestate-token-hub/internal/domain"
	"realestate-token-hub/internal/storage"
)

// ListingStore implements storage.ListingStore using PostgreSQL.
type ListingStore struct {
	pool *Pool
}

// NewListingStore creates a new ListingStore.
func NewListingStore(pool *Pool) *ListingStore {
	return &ListingStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ListingStore = (*ListingStore)(nil)

const selectListing = `
	SELECT listing_id::text, seller, token_address, token_name, token_symbol, decimals,
		amount::text, price_per_token::text, amount_text, price_text, total_price_text, fetched_at
	FROM listings
`

// ReplaceAll swaps the snapshot.
func (s *ListingStore) ReplaceAll(ctx context.Context, listings []*domain.Listing) (err error) {
	start := time.Now()
	defer func() { observe("listings.replace", start, err) }()

	for _, l := range listings {
		if l == nil || l.ListingID == nil {
			return storage.ErrInvalidInput
		}
	}

	query := `
		INSERT INTO listings (
			listing_id, seller, token_address, token_name, token_symbol, decimals,
			amount, price_per_token, amount_text, price_text, total_price_text, fetched_at
		) VALUES ($1::numeric, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9, $10, $11, $12)
	`

	return replaceTable(ctx, s.pool, "listings", len(listings), func(tx pgx.Tx, i int) error {
		l := listings[i]
		_, err := tx.Exec(ctx, query,
			l.ListingID.String(),
			addressText(l.Seller),
			addressText(l.TokenAddress),
			l.TokenName,
			l.TokenSymbol,
			int16(l.Decimals),
			bigText(l.Amount),
			bigText(l.PricePerToken),
			l.AmountText,
			l.PricePerTokenText,
			l.TotalPriceText,
			l.FetchedAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert listing: %w", err)
		}
		return nil
	})
}

// GetAll returns all listings ordered by listing ID ASC.
func (s *ListingStore) GetAll(ctx context.Context) ([]*domain.Listing, error) {
	rows, err := s.pool.Query(ctx, selectListing+" ORDER BY listing_id ASC")
	if err != nil {
		return nil, fmt.Errorf("get listings: %w", err)
	}
	defer rows.Close()

	return scanListings(rows)
}

// GetByID returns a listing. Returns ErrNotFound if not cached.
func (s *ListingStore) GetByID(ctx context.Context, id *big.Int) (*domain.Listing, error) {
	if id == nil {
		return nil, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, selectListing+" WHERE listing_id = $1::numeric", id.String())
	l, err := scanListing(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get listing by id: %w", err)
	}
	return l, nil
}

// GetByToken returns the listings of a token ordered by listing ID ASC.
func (s *ListingStore) GetByToken(ctx context.Context, token common.Address) ([]*domain.Listing, error) {
	rows, err := s.pool.Query(ctx, selectListing+" WHERE token_address = $1 ORDER BY listing_id ASC", addressText(token))
	if err != nil {
		return nil, fmt.Errorf("get listings by token: %w", err)
	}
	defer rows.Close()

	return scanListings(rows)
}

func scanListings(rows pgx.Rows) ([]*domain.Listing, error) {
	var result []*domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

// scanListing scans a single row into Listing.
func scanListing(row pgx.Row) (*domain.Listing, error) {
	var (
		l                 domain.Listing
		id, seller, token string
		amount, price     string
		decimals          int16
	)

	err := row.Scan(
		&id,
		&seller,
		&token,
		&l.TokenName,
		&l.TokenSymbol,
		&decimals,
		&amount,
		&price,
		&l.AmountText,
		&l.PricePerTokenText,
		&l.TotalPriceText,
		&l.FetchedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Seller = common.HexToAddress(seller)
	l.TokenAddress = common.HexToAddress(token)
	l.Decimals = uint8(decimals)
	if l.ListingID, err = parseBig(id); err != nil {
		return nil, err
	}
	if l.Amount, err = parseBig(amount); err != nil {
		return nil, err
	}
	if l.PricePerToken, err = parseBig(price); err != nil {
		return nil, err
	}
	return &l, nil
}
