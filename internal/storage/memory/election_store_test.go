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

func TestElectionStore(t *testing.T) {
	store := NewElectionStore()
	ctx := context.Background()
	token := common.HexToAddress("0x01")

	if _, err := store.Get(ctx, token); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Put(ctx, &domain.Election{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero token, got %v", err)
	}

	e := &domain.Election{
		TokenAddress: token,
		Candidates: []*domain.Candidate{
			{Address: common.HexToAddress("0xc1"), Votes: big.NewInt(5)},
		},
	}
	if err := store.Put(ctx, e); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Mutating the caller's value must not leak into the store.
	e.Candidates[0].Votes.SetInt64(99)

	got, err := store.Get(ctx, token)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Candidates) != 1 || got.Candidates[0].Votes.Int64() != 5 {
		t.Fatalf("unexpected election: %+v", got.Candidates[0])
	}
}
