package clickhouse

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realestate-token-hub/internal/domain"
	"realestate-token-hub/internal/storage"
)

func TestTxEventStore_InsertAndLatest(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTxEventStore(conn)

	h1 := common.HexToHash("0x01")
	h2 := common.HexToHash("0x02")
	from := common.HexToAddress("0xf1")

	events := []*domain.TxEvent{
		{Hash: h1, Status: domain.TxStatusPending, Kind: domain.TxKindMint, From: from, PropertyName: "Taipei 101", Amount: "1000", Timestamp: 1000},
		{Hash: h2, Status: domain.TxStatusPending, Kind: domain.TxKindPurchase, From: from, Timestamp: 2000},
		{Hash: h1, Status: domain.TxStatusCompleted, Kind: domain.TxKindMint, From: from, PropertyName: "Taipei 101", Amount: "1000", BlockNumber: 7, Timestamp: 3000},
		{Hash: h2, Status: domain.TxStatusFailed, Kind: domain.TxKindPurchase, From: from, Error: "execution reverted", Timestamp: 2500},
	}
	for _, e := range events {
		require.NoError(t, store.Insert(ctx, e))
	}

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	require.Len(t, latest, 2)

	assert.Equal(t, h1, latest[0].Hash)
	assert.Equal(t, domain.TxStatusCompleted, latest[0].Status)
	assert.Equal(t, uint64(7), latest[0].BlockNumber)
	assert.Equal(t, from, latest[0].From)

	assert.Equal(t, h2, latest[1].Hash)
	assert.Equal(t, domain.TxStatusFailed, latest[1].Status)
	assert.Equal(t, "execution reverted", latest[1].Error)

	history, err := store.GetByHash(ctx, h1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.TxStatusPending, history[0].Status)
}

func TestTxEventStore_Duplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTxEventStore(conn)

	e := &domain.TxEvent{Hash: common.HexToHash("0x0a"), Status: domain.TxStatusPending, Kind: domain.TxKindApprove, Timestamp: 1}
	require.NoError(t, store.Insert(ctx, e))
	assert.ErrorIs(t, store.Insert(ctx, e), storage.ErrDuplicateKey)

	_, err := store.GetByHash(ctx, common.HexToHash("0xff"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
