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

func TestPropertyStore_ReplaceAllAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPropertyStore(pool)

	supply, _ := new(big.Int).SetString("1000000000000000000000", 10)
	first := &domain.Property{
		TokenAddress:    common.HexToAddress("0x00000000000000000000000000000000000000b1"),
		PropertyName:    "Taipei 101",
		TokenName:       "Taipei Token",
		TokenSymbol:     "TPE",
		Decimals:        18,
		TotalSupply:     supply,
		TotalSupplyText: "1000.0",
		DAOAddress:      common.HexToAddress("0x00000000000000000000000000000000000000d1"),
		Manager:         common.HexToAddress("0x00000000000000000000000000000000000000e1"),
		FetchedAt:       1700000000000,
	}
	second := &domain.Property{
		TokenAddress: common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		PropertyName: "Kaohsiung Loft",
		TokenSymbol:  "KHH",
		Decimals:     18,
		TotalSupply:  big.NewInt(5),
	}

	require.NoError(t, store.ReplaceAll(ctx, []*domain.Property{first, second}))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Taipei 101", all[0].PropertyName)
	assert.Equal(t, "KHH", all[1].TokenSymbol)

	got, err := store.GetByToken(ctx, first.TokenAddress)
	require.NoError(t, err)
	assert.Equal(t, first.TokenAddress, got.TokenAddress)
	assert.Equal(t, 0, supply.Cmp(got.TotalSupply))
	assert.Equal(t, first.DAOAddress, got.DAOAddress)
	assert.Equal(t, first.Manager, got.Manager)
	assert.Equal(t, uint8(18), got.Decimals)

	// Refresh drops vanished rows.
	require.NoError(t, store.ReplaceAll(ctx, []*domain.Property{second}))
	_, err = store.GetByToken(ctx, first.TokenAddress)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPropertyStore_Upsert(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewPropertyStore(pool)
	token := common.HexToAddress("0x00000000000000000000000000000000000000c1")

	require.NoError(t, store.Upsert(ctx, &domain.Property{TokenAddress: token, TokenSymbol: "OLD", TotalSupply: big.NewInt(1)}))
	require.NoError(t, store.Upsert(ctx, &domain.Property{TokenAddress: token, TokenSymbol: "NEW", TotalSupply: big.NewInt(2)}))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "NEW", all[0].TokenSymbol)
	assert.Equal(t, int64(2), all[0].TotalSupply.Int64())
}
