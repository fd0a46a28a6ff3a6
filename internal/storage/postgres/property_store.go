package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"realestate-token-hub/internal/domain"
	"realestate-token-hub/internal/storage"
)

// PropertyStore implements storage.PropertyStore using PostgreSQL.
type PropertyStore struct {
	pool *Pool
}

// NewPropertyStore creates a new PropertyStore.
func NewPropertyStore(pool *Pool) *PropertyStore {
	return &PropertyStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PropertyStore = (*PropertyStore)(nil)

const insertProperty = `
	INSERT INTO properties (
		token_address, position, property_name, token_name, token_symbol, decimals,
		total_supply, total_supply_text, dao_address, manager, fetched_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11)
`

const selectProperty = `
	SELECT token_address, property_name, token_name, token_symbol, decimals,
		total_supply::text, total_supply_text, dao_address, manager, fetched_at
	FROM properties
`

// ReplaceAll swaps the snapshot. Order is preserved.
func (s *PropertyStore) ReplaceAll(ctx context.Context, props []*domain.Property) (err error) {
	start := time.Now()
	defer func() { observe("properties.replace", start, err) }()

	for _, p := range props {
		if p == nil {
			return storage.ErrInvalidInput
		}
	}

	return replaceTable(ctx, s.pool, "properties", len(props), func(tx pgx.Tx, i int) error {
		p := props[i]
		_, err := tx.Exec(ctx, insertProperty,
			addressText(p.TokenAddress),
			i,
			p.PropertyName,
			p.TokenName,
			p.TokenSymbol,
			int16(p.Decimals),
			bigText(p.TotalSupply),
			p.TotalSupplyText,
			addressText(p.DAOAddress),
			addressText(p.Manager),
			p.FetchedAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert property: %w", err)
		}
		return nil
	})
}

// Upsert replaces or appends a single property.
func (s *PropertyStore) Upsert(ctx context.Context, p *domain.Property) (err error) {
	if p == nil || p.TokenAddress == (common.Address{}) {
		return storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() { observe("properties.upsert", start, err) }()

	query := `
		INSERT INTO properties (
			token_address, position, property_name, token_name, token_symbol, decimals,
			total_supply, total_supply_text, dao_address, manager, fetched_at
		) VALUES (
			$1, (SELECT COALESCE(MAX(position) + 1, 0) FROM properties),
			$2, $3, $4, $5, $6::numeric, $7, $8, $9, $10
		)
		ON CONFLICT (token_address) DO UPDATE SET
			property_name = EXCLUDED.property_name,
			token_name = EXCLUDED.token_name,
			token_symbol = EXCLUDED.token_symbol,
			decimals = EXCLUDED.decimals,
			total_supply = EXCLUDED.total_supply,
			total_supply_text = EXCLUDED.total_supply_text,
			dao_address = EXCLUDED.dao_address,
			manager = EXCLUDED.manager,
			fetched_at = EXCLUDED.fetched_at
	`

	_, err = s.pool.Exec(ctx, query,
		addressText(p.TokenAddress),
		p.PropertyName,
		p.TokenName,
		p.TokenSymbol,
		int16(p.Decimals),
		bigText(p.TotalSupply),
		p.TotalSupplyText,
		addressText(p.DAOAddress),
		addressText(p.Manager),
		p.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert property: %w", err)
	}
	return nil
}

// GetAll returns the snapshot in factory order.
func (s *PropertyStore) GetAll(ctx context.Context) ([]*domain.Property, error) {
	rows, err := s.pool.Query(ctx, selectProperty+" ORDER BY position ASC")
	if err != nil {
		return nil, fmt.Errorf("get properties: %w", err)
	}
	defer rows.Close()

	var result []*domain.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan property: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// GetByToken returns a property by token address. Returns ErrNotFound if not cached.
func (s *PropertyStore) GetByToken(ctx context.Context, token common.Address) (*domain.Property, error) {
	row := s.pool.QueryRow(ctx, selectProperty+" WHERE token_address = $1", addressText(token))
	p, err := scanProperty(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get property by token: %w", err)
	}
	return p, nil
}

// scanProperty scans a single row into Property.
func scanProperty(row pgx.Row) (*domain.Property, error) {
	var (
		p                          domain.Property
		token, dao, manager, total string
		decimals                   int16
	)

	err := row.Scan(
		&token,
		&p.PropertyName,
		&p.TokenName,
		&p.TokenSymbol,
		&decimals,
		&total,
		&p.TotalSupplyText,
		&dao,
		&manager,
		&p.FetchedAt,
	)
	if err != nil {
		return nil, err
	}

	p.TokenAddress = common.HexToAddress(token)
	p.DAOAddress = common.HexToAddress(dao)
	p.Manager = common.HexToAddress(manager)
	p.Decimals = uint8(decimals)
	if p.TotalSupply, err = parseBig(total); err != nil {
		return nil, err
	}
	return &p, nil
}
