package txlog

import (
	"context"
	"fmt"
	"strings"

	"realestate-token-hub/internal/domain"
)

// PageSize is the number of transactions per page.
const PageSize = 10

// Filter selects transactions. Empty fields (or "all") match everything.
type Filter struct {
	Kind     domain.TxKind
	Status   domain.TxStatus
	Property string
	Search   string
	Page     int
}

// Page is one page of the filtered history.
type Page struct {
	Entries   []*domain.TxEvent `json:"entries"`
	Page      int               `json:"page"`
	PageCount int               `json:"pageCount"`
	Total     int               `json:"total"`
}

// Query returns the latest status of each journaled transaction matching
// f, newest first, paginated.
func (j *Journal) Query(ctx context.Context, f Filter) (*Page, error) {
	events, err := j.store.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("load journal: %w", err)
	}
	return Paginate(Apply(events, f), f.Page), nil
}

// All returns every matching transaction without pagination.
func (j *Journal) All(ctx context.Context, f Filter) ([]*domain.TxEvent, error) {
	events, err := j.store.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("load journal: %w", err)
	}
	return Apply(events, f), nil
}

// Apply filters events, keeping their order.
func Apply(events []*domain.TxEvent, f Filter) []*domain.TxEvent {
	search := strings.ToLower(strings.TrimSpace(f.Search))

	var out []*domain.TxEvent
	for _, e := range events {
		if !isAll(string(f.Kind)) && e.Kind != f.Kind {
			continue
		}
		if !isAll(string(f.Status)) && e.Status != f.Status {
			continue
		}
		if !isAll(f.Property) && e.PropertyName != f.Property {
			continue
		}
		if search != "" && !matches(e, search) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Paginate cuts a page out of events. page is clamped to [1, PageCount];
// an empty result still has one page.
func Paginate(events []*domain.TxEvent, page int) *Page {
	pageCount := (len(events) + PageSize - 1) / PageSize
	if pageCount < 1 {
		pageCount = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pageCount {
		page = pageCount
	}

	start := (page - 1) * PageSize
	end := start + PageSize
	if end > len(events) {
		end = len(events)
	}

	entries := events[start:end]
	if entries == nil {
		entries = []*domain.TxEvent{}
	}
	return &Page{
		Entries:   entries,
		Page:      page,
		PageCount: pageCount,
		Total:     len(events),
	}
}

func isAll(v string) bool {
	return v == "" || strings.EqualFold(v, "all")
}

func matches(e *domain.TxEvent, needle string) bool {
	for _, field := range []string{
		e.Hash.Hex(),
		e.From.Hex(),
		e.To.Hex(),
		e.TokenAddress.Hex(),
		e.PropertyName,
	} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}
