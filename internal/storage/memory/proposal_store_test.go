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

func TestProposalStore(t *testing.T) {
	store := NewProposalStore()
	ctx := context.Background()

	err := store.ReplaceAll(ctx, []*domain.Proposal{
		{ID: 1, Content: "second", VotesFor: big.NewInt(1)},
		{ID: 0, Content: "first"},
	})
	if err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}

	all, _ := store.GetAll(ctx)
	if len(all) != 2 || all[0].Content != "first" {
		t.Fatalf("unexpected proposals: %+v", all)
	}

	p, err := store.GetByID(ctx, 1)
	if err != nil || p.VotesFor.Int64() != 1 {
		t.Fatalf("GetByID = %+v, %v", p, err)
	}
	if _, err := store.GetByID(ctx, 7); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestElectionStore_PutGetIsolation(t *testing.T) {
	store := NewElectionStore()
	ctx := context.Background()
	token := common.HexToAddress("0x0a")

	if _, err := store.Get(ctx, token); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	e := &domain.Election{
		TokenAddress: token,
		Candidates:   []*domain.Candidate{{Address: common.HexToAddress("0xc1"), Votes: big.NewInt(5)}},
	}
	if err := store.Put(ctx, e); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	e.Candidates[0].Votes.SetInt64(0)

	got, err := store.Get(ctx, token)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Candidates[0].Votes.Int64() != 5 {
		t.Fatalf("stored election shares memory with caller")
	}

	if err := store.Put(ctx, &domain.Election{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
