package postgres

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realestate-token-hub/internal/domain"
	"realestate-token-hub/internal/storage"
)

func TestProposalStore_ReplaceAllAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewProposalStore(pool)

	require.NoError(t, store.ReplaceAll(ctx, []*domain.Proposal{
		{ID: 1, Content: "Install solar panels", VotesFor: big.NewInt(30), VotesAgainst: big.NewInt(5), Finalized: true, Passed: true},
		{ID: 0, Content: "Repaint lobby", VotesFor: big.NewInt(0), VotesAgainst: big.NewInt(0)},
	}))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Repaint lobby", all[0].Content)

	p, err := store.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.True(t, p.Executable())
	assert.Equal(t, int64(30), p.VotesFor.Int64())

	_, err = store.GetByID(ctx, 9)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestElectionStore_PutAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewElectionStore(pool)
	token := common.HexToAddress("0x00000000000000000000000000000000000000b1")
	candidate := common.HexToAddress("0x00000000000000000000000000000000000000c1")

	_, err := store.Get(ctx, token)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	e := &domain.Election{
		TokenAddress: token,
		DAOAddress:   common.HexToAddress("0xd1"),
		Manager:      common.HexToAddress("0xe1"),
		Candidates:   []*domain.Candidate{{Address: candidate, Votes: big.NewInt(12), VotesText: "0.000000000000000012"}},
		FetchedAt:    1700000000000,
	}
	require.NoError(t, store.Put(ctx, e))

	e.Candidates = nil
	e.DAOManager = candidate
	require.NoError(t, store.Put(ctx, e))

	got, err := store.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, candidate, got.DAOManager)
	assert.Empty(t, got.Candidates)
}
