package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"realestate-token-hub/internal/domain"
	"realestate-token-hub/internal/storage"
)

// ElectionStore implements storage.ElectionStore using PostgreSQL.
// Candidates are stored as a JSONB array.
type ElectionStore struct {
	pool *Pool
}

// NewElectionStore creates a new ElectionStore.
func NewElectionStore(pool *Pool) *ElectionStore {
	return &ElectionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ElectionStore = (*ElectionStore)(nil)

type candidateRow struct {
	Address   string `json:"address"`
	Votes     string `json:"votes"`
	VotesText string `json:"votesText"`
}

// Put replaces the election of e.TokenAddress.
func (s *ElectionStore) Put(ctx context.Context, e *domain.Election) (err error) {
	if e == nil || e.TokenAddress == (common.Address{}) {
		return storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() { observe("elections.put", start, err) }()

	candidates := make([]candidateRow, len(e.Candidates))
	for i, c := range e.Candidates {
		candidates[i] = candidateRow{
			Address:   addressText(c.Address),
			Votes:     bigText(c.Votes),
			VotesText: c.VotesText,
		}
	}
	payload, err := json.Marshal(candidates)
	if err != nil {
		return fmt.Errorf("encode candidates: %w", err)
	}

	query := `
		INSERT INTO elections (token_address, dao_address, manager, dao_manager, candidates, fetched_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		ON CONFLICT (token_address) DO UPDATE SET
			dao_address = EXCLUDED.dao_address,
			manager = EXCLUDED.manager,
			dao_manager = EXCLUDED.dao_manager,
			candidates = EXCLUDED.candidates,
			fetched_at = EXCLUDED.fetched_at
	`

	_, err = s.pool.Exec(ctx, query,
		addressText(e.TokenAddress),
		addressText(e.DAOAddress),
		addressText(e.Manager),
		addressText(e.DAOManager),
		string(payload),
		e.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("put election: %w", err)
	}
	return nil
}

// Get returns the election of a token. Returns ErrNotFound if not cached.
func (s *ElectionStore) Get(ctx context.Context, token common.Address) (*domain.Election, error) {
	query := `
		SELECT token_address, dao_address, manager, dao_manager, candidates::text, fetched_at
		FROM elections
		WHERE token_address = $1
	`

	var (
		e                                   domain.Election
		tokenText, dao, manager, daoManager string
		payload                             string
	)
	err := s.pool.QueryRow(ctx, query, addressText(token)).Scan(
		&tokenText, &dao, &manager, &daoManager, &payload, &e.FetchedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get election: %w", err)
	}

	var rows []candidateRow
	if err := json.Unmarshal([]byte(payload), &rows); err != nil {
		return nil, fmt.Errorf("decode candidates: %w", err)
	}

	e.TokenAddress = common.HexToAddress(tokenText)
	e.DAOAddress = common.HexToAddress(dao)
	e.Manager = common.HexToAddress(manager)
	e.DAOManager = common.HexToAddress(daoManager)
	e.Candidates = make([]*domain.Candidate, 0, len(rows))
	for _, r := range rows {
		votes, err := parseBig(r.Votes)
		if err != nil {
			return nil, fmt.Errorf("decode candidate votes: %w", err)
		}
		e.Candidates = append(e.Candidates, &domain.Candidate{
			Address:   common.HexToAddress(r.Address),
			Votes:     votes,
			VotesText: r.VotesText,
		})
	}
	return &e, nil
}
