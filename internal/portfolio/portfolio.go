// Package portfolio computes the holdings of a wallet across all
// property tokens.
package portfolio

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"realestate-token-hub/internal/chain"
	"realestate-token-hub/internal/contracts"
	"realestate-token-hub/internal/domain"
)

const fetchConcurrency = 8

// Sort keys.
const (
	SortProperty = "property"
	SortSymbol   = "symbol"
	SortAmount   = "amount"
	SortValue    = "value"
)

// Sort directions.
const (
	Asc  = "asc"
	Desc = "desc"
)

// PropertyLister lists the cached properties.
type PropertyLister interface {
	List(ctx context.Context, refresh bool) ([]*domain.Property, error)
}

// ListingLister lists the cached active listings.
type ListingLister interface {
	Listings(ctx context.Context, refresh bool) ([]*domain.Listing, error)
}

// Portfolio is the holdings of one wallet.
type Portfolio struct {
	Owner          common.Address    `json:"owner"`
	Holdings       []*domain.Holding `json:"holdings"`
	TotalValue     *big.Int          `json:"totalValue"`
	TotalValueText string            `json:"totalValueText"`
}

// Service computes portfolios.
type Service struct {
	bindings   *contracts.Bindings
	properties PropertyLister
	listings   ListingLister
}

// NewService creates a portfolio service.
func NewService(bindings *contracts.Bindings, properties PropertyLister, listings ListingLister) *Service {
	return &Service{bindings: bindings, properties: properties, listings: listings}
}

// Holdings returns every property token owner holds a positive balance of.
func (s *Service) Holdings(ctx context.Context, owner common.Address) (*Portfolio, error) {
	props, err := s.properties.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	listings, err := s.listings.Listings(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	floor := LowestPrices(listings)

	results := make([]*domain.Holding, len(props))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, p := range props {
		g.Go(func() error {
			bal, err := s.bindings.Token(p.TokenAddress).BalanceOf(&bind.CallOpts{Context: gctx}, owner)
			if err != nil {
				return fmt.Errorf("balance of %s: %w", p.TokenAddress.Hex(), err)
			}
			if bal.Sign() > 0 {
				results[i] = NewHolding(p, bal, floor[p.TokenAddress])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	holdings := make([]*domain.Holding, 0, len(results))
	for _, h := range results {
		if h != nil {
			holdings = append(holdings, h)
		}
	}
	total := TotalValue(holdings)
	return &Portfolio{
		Owner:          owner,
		Holdings:       holdings,
		TotalValue:     total,
		TotalValueText: chain.FormatEther(total),
	}, nil
}

// NewHolding builds a holding of balance. price is the estimated price
// per whole token in wei and may be nil.
func NewHolding(p *domain.Property, balance, price *big.Int) *domain.Holding {
	h := &domain.Holding{
		TokenAddress: p.TokenAddress,
		PropertyName: p.PropertyName,
		TokenSymbol:  p.TokenSymbol,
		Decimals:     p.Decimals,
		Balance:      balance,
		BalanceText:  chain.FormatUnits(balance, p.Decimals),
		SharePct:     SharePct(balance, p.TotalSupply),
	}
	if price != nil {
		h.Value = chain.PurchaseValue(balance, price)
		h.ValueText = chain.FormatEther(h.Value)
	}
	return h
}

// SharePct returns balance as a percentage of supply, rounded to two
// decimals.
func SharePct(balance, supply *big.Int) float64 {
	if balance == nil || supply == nil || supply.Sign() == 0 {
		return 0
	}
	pct := decimal.NewFromBigInt(balance, 0).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromBigInt(supply, 0), 2)
	return pct.InexactFloat64()
}

// LowestPrices returns the cheapest active price per token.
func LowestPrices(listings []*domain.Listing) map[common.Address]*big.Int {
	out := make(map[common.Address]*big.Int)
	for _, l := range listings {
		if l.PricePerToken == nil {
			continue
		}
		if cur, ok := out[l.TokenAddress]; !ok || l.PricePerToken.Cmp(cur) < 0 {
			out[l.TokenAddress] = l.PricePerToken
		}
	}
	return out
}

// TotalValue sums the estimated value of holdings. Holdings without an
// estimate count as zero.
func TotalValue(holdings []*domain.Holding) *big.Int {
	total := new(big.Int)
	for _, h := range holdings {
		if h.Value != nil {
			total.Add(total, h.Value)
		}
	}
	return total
}

// Sort orders holdings in place by key and dir. Empty key sorts by
// property name, empty dir is ascending.
func Sort(holdings []*domain.Holding, key, dir string) error {
	var compare func(a, b *domain.Holding) int
	switch strings.ToLower(key) {
	case "", SortProperty:
		compare = func(a, b *domain.Holding) int { return strings.Compare(a.PropertyName, b.PropertyName) }
	case SortSymbol:
		compare = func(a, b *domain.Holding) int { return strings.Compare(a.TokenSymbol, b.TokenSymbol) }
	case SortAmount:
		compare = func(a, b *domain.Holding) int { return cmpBig(a.Balance, b.Balance) }
	case SortValue:
		compare = func(a, b *domain.Holding) int { return cmpBig(a.Value, b.Value) }
	default:
		return fmt.Errorf("%w: sort key %q", domain.ErrInvalidInput, key)
	}

	var sign int
	switch strings.ToLower(dir) {
	case "", Asc:
		sign = 1
	case Desc:
		sign = -1
	default:
		return fmt.Errorf("%w: sort direction %q", domain.ErrInvalidInput, dir)
	}

	sort.SliceStable(holdings, func(i, j int) bool {
		return sign*compare(holdings[i], holdings[j]) < 0
	})
	return nil
}

// cmpBig treats nil as zero.
func cmpBig(a, b *big.Int) int {
	if a == nil {
		a = new(big.Int)
	}
	if b == nil {
		b = new(big.Int)
	}
	return a.Cmp(b)
}
