package memory

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"realestate-token-hub/internal/domain"
	"realestate-token-hub/internal/storage"
)

func TestListingStore_ReplaceAllAndGet(t *testing.T) {
	store := NewListingStore()
	ctx := context.Background()
	tokenA := common.HexToAddress("0x0a")
	tokenB := common.HexToAddress("0x0b")

	listings := []*domain.Listing{
		{ListingID: big.NewInt(3), TokenAddress: tokenA},
		{ListingID: big.NewInt(1), TokenAddress: tokenB},
		{ListingID: big.NewInt(2), TokenAddress: tokenA},
	}
	if err := store.ReplaceAll(ctx, listings); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}

	all, _ := store.GetAll(ctx)
	for i, want := range []int64{1, 2, 3} {
		if all[i].ListingID.Int64() != want {
			t.Fatalf("all[%d] = %s, want %d", i, all[i].ListingID, want)
		}
	}

	byToken, _ := store.GetByToken(ctx, tokenA)
	if len(byToken) != 2 || byToken[0].ListingID.Int64() != 2 {
		t.Fatalf("unexpected listings for token: %+v", byToken)
	}

	l, err := store.GetByID(ctx, big.NewInt(1))
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if l.TokenAddress != tokenB {
		t.Fatalf("wrong listing: %+v", l)
	}

	if _, err := store.GetByID(ctx, big.NewInt(99)); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListingStore_DuplicateID(t *testing.T) {
	store := NewListingStore()
	err := store.ReplaceAll(context.Background(), []*domain.Listing{
		{ListingID: big.NewInt(1)},
		{ListingID: big.NewInt(1)},
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}
