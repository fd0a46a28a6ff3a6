package txlog

import (
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"realestate-token-hub/internal/domain"
)

func sampleEvents(n int) []*domain.TxEvent {
	events := make([]*domain.TxEvent, n)
	for i := range events {
		kind := domain.TxKindPurchase
		if i%2 == 1 {
			kind = domain.TxKindSale
		}
		events[i] = &domain.TxEvent{
			Hash:         common.BigToHash(big.NewInt(int64(i + 1))),
			Status:       domain.TxStatusCompleted,
			Kind:         kind,
			From:         common.HexToAddress(fmt.Sprintf("0x%040x", 0xa0+i)),
			PropertyName: fmt.Sprintf("Property %d", i%3),
			Timestamp:    int64(1000 * (n - i)),
		}
	}
	return events
}

func TestApply_Filters(t *testing.T) {
	events := sampleEvents(6)
	events[2].Status = domain.TxStatusFailed

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"empty filter", Filter{}, 6},
		{"all keyword", Filter{Kind: "all", Status: "ALL", Property: "all"}, 6},
		{"kind", Filter{Kind: domain.TxKindSale}, 3},
		{"status", Filter{Status: domain.TxStatusFailed}, 1},
		{"property", Filter{Property: "Property 1"}, 2},
		{"kind and property", Filter{Kind: domain.TxKindPurchase, Property: "Property 0"}, 1},
		{"search property case-insensitive", Filter{Search: "property 2"}, 2},
		{"search address", Filter{Search: strings.ToUpper(events[4].From.Hex()[2:])}, 1},
		{"no match", Filter{Search: "nowhere"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(events, tt.filter)
			if len(got) != tt.want {
				t.Errorf("Apply() returned %d events, want %d", len(got), tt.want)
			}
		})
	}
}

func TestApply_KeepsOrder(t *testing.T) {
	events := sampleEvents(5)
	got := Apply(events, Filter{Kind: domain.TxKindPurchase})
	for i := 1; i < len(got); i++ {
		if got[i-1].Timestamp < got[i].Timestamp {
			t.Fatalf("order changed at %d", i)
		}
	}
}

func TestPaginate(t *testing.T) {
	events := sampleEvents(23)

	tests := []struct {
		page        int
		wantPage    int
		wantEntries int
	}{
		{page: 0, wantPage: 1, wantEntries: 10},
		{page: 1, wantPage: 1, wantEntries: 10},
		{page: 2, wantPage: 2, wantEntries: 10},
		{page: 3, wantPage: 3, wantEntries: 3},
		{page: 9, wantPage: 3, wantEntries: 3},
		{page: -4, wantPage: 1, wantEntries: 10},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("page=%d", tt.page), func(t *testing.T) {
			p := Paginate(events, tt.page)
			if p.Page != tt.wantPage {
				t.Errorf("Page = %d, want %d", p.Page, tt.wantPage)
			}
			if len(p.Entries) != tt.wantEntries {
				t.Errorf("entries = %d, want %d", len(p.Entries), tt.wantEntries)
			}
			if p.PageCount != 3 {
				t.Errorf("PageCount = %d, want 3", p.PageCount)
			}
			if p.Total != 23 {
				t.Errorf("Total = %d, want 23", p.Total)
			}
		})
	}
}

func TestPaginate_Empty(t *testing.T) {
	p := Paginate(nil, 5)
	if p.Page != 1 || p.PageCount != 1 {
		t.Errorf("got page %d of %d, want 1 of 1", p.Page, p.PageCount)
	}
	if p.Entries == nil || len(p.Entries) != 0 {
		t.Errorf("expected empty non-nil entries, got %v", p.Entries)
	}
}
