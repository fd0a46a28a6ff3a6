package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"realestate-token-hub/internal/domain"
	"realestate-token-hub/internal/storage"
)

func TestTxEventStore_InsertDuplicate(t *testing.T) {
	store := NewTxEventStore()
	ctx := context.Background()
	hash := common.HexToHash("0x01")

	e := &domain.TxEvent{Hash: hash, Status: domain.TxStatusPending, Timestamp: 1}
	if err := store.Insert(ctx, e); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, e); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	if err := store.Insert(ctx, &domain.TxEvent{Status: domain.TxStatusPending}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestTxEventStore_Latest(t *testing.T) {
	store := NewTxEventStore()
	ctx := context.Background()
	h1 := common.HexToHash("0x01")
	h2 := common.HexToHash("0x02")

	events := []*domain.TxEvent{
		{Hash: h1, Status: domain.TxStatusPending, Kind: domain.TxKindMint, Timestamp: 100},
		{Hash: h2, Status: domain.TxStatusPending, Kind: domain.TxKindPurchase, Timestamp: 200},
		{Hash: h1, Status: domain.TxStatusCompleted, Kind: domain.TxKindMint, Timestamp: 300},
	}
	for _, e := range events {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	latest, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(latest))
	}
	if latest[0].Hash != h1 || latest[0].Status != domain.TxStatusCompleted {
		t.Fatalf("latest[0] = %+v, want completed h1", latest[0])
	}
	if latest[1].Hash != h2 || latest[1].Status != domain.TxStatusPending {
		t.Fatalf("latest[1] = %+v, want pending h2", latest[1])
	}

	history, err := store.GetByHash(ctx, h1)
	if err != nil {
		t.Fatalf("GetByHash failed: %v", err)
	}
	if len(history) != 2 || history[0].Status != domain.TxStatusPending {
		t.Fatalf("unexpected history: %+v", history)
	}

	if _, err := store.GetByHash(ctx, common.HexToHash("0xff")); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTxEventStore_FinalStatusWinsOnTimestampTie(t *testing.T) {
	store := NewTxEventStore()
	ctx := context.Background()
	h := common.HexToHash("0x03")

	_ = store.Insert(ctx, &domain.TxEvent{Hash: h, Status: domain.TxStatusFailed, Timestamp: 50})
	_ = store.Insert(ctx, &domain.TxEvent{Hash: h, Status: domain.TxStatusPending, Timestamp: 50})

	latest, _ := store.Latest(ctx)
	if latest[0].Status != domain.TxStatusFailed {
		t.Fatalf("status = %s, want failed", latest[0].Status)
	}
}
