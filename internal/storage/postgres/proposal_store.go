package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"realestate-token-hub/internal/domain"
	"realestate-token-hub/internal/storage"
)

// ProposalStore implements storage.ProposalStore using PostgreSQL.
type ProposalStore struct {
	pool *Pool
}

// NewProposalStore creates a new ProposalStore.
func NewProposalStore(pool *Pool) *ProposalStore {
	return &ProposalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ProposalStore = (*ProposalStore)(nil)

const selectProposal = `
	SELECT id, content, votes_for::text, votes_against::text, finalized, passed, executed, fetched_at
	FROM proposals
`

// ReplaceAll swaps the snapshot.
func (s *ProposalStore) ReplaceAll(ctx context.Context, proposals []*domain.Proposal) (err error) {
	start := time.Now()
	defer func() { observe("proposals.replace", start, err) }()

	for _, p := range proposals {
		if p == nil {
			return storage.ErrInvalidInput
		}
	}

	query := `
		INSERT INTO proposals (
			id, content, votes_for, votes_against, finalized, passed, executed, fetched_at
		) VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6, $7, $8)
	`

	return replaceTable(ctx, s.pool, "proposals", len(proposals), func(tx pgx.Tx, i int) error {
		p := proposals[i]
		_, err := tx.Exec(ctx, query,
			int64(p.ID),
			p.Content,
			bigText(p.VotesFor),
			bigText(p.VotesAgainst),
			p.Finalized,
			p.Passed,
			p.Executed,
			p.FetchedAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert proposal: %w", err)
		}
		return nil
	})
}

// GetAll returns all proposals ordered by ID ASC.
func (s *ProposalStore) GetAll(ctx context.Context) ([]*domain.Proposal, error) {
	rows, err := s.pool.Query(ctx, selectProposal+" ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("get proposals: %w", err)
	}
	defer rows.Close()

	var result []*domain.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// GetByID returns a proposal. Returns ErrNotFound if not cached.
func (s *ProposalStore) GetByID(ctx context.Context, id uint64) (*domain.Proposal, error) {
	row := s.pool.QueryRow(ctx, selectProposal+" WHERE id = $1", int64(id))
	p, err := scanProposal(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get proposal by id: %w", err)
	}
	return p, nil
}

// scanProposal scans a single row into Proposal.
func scanProposal(row pgx.Row) (*domain.Proposal, error) {
	var (
		p                      domain.Proposal
		id                     int64
		votesFor, votesAgainst string
	)

	err := row.Scan(
		&id,
		&p.Content,
		&votesFor,
		&votesAgainst,
		&p.Finalized,
		&p.Passed,
		&p.Executed,
		&p.FetchedAt,
	)
	if err != nil {
		return nil, err
	}

	p.ID = uint64(id)
	if p.VotesFor, err = parseBig(votesFor); err != nil {
		return nil, err
	}
	if p.VotesAgainst, err = parseBig(votesAgainst); err != nil {
		return nil, err
	}
	return &p, nil
}
