// Package marketplace reads active listings and buys, lists and cancels
// property token shares on the marketplace contract.
package marketplace

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"realestate-token-hub/internal/chain"
	"realestate-token-hub/internal/contracts"
	"realestate-token-hub/internal/domain"
	"realestate-token-hub/internal/feed"
	"realestate-token-hub/internal/observability"
	"realestate-token-hub/internal/property"
	"realestate-token-hub/internal/storage"
	"realestate-token-hub/internal/txlog"
)

const fetchConcurrency = 8

var (
	// ErrListingNotActive is returned for sold out, cancelled or unknown listings.
	ErrListingNotActive = errors.New("listing not active")
	// ErrOwnListing is returned when the buyer is the seller.
	ErrOwnListing = errors.New("cannot buy own listing")
	// ErrAmountExceedsListing is returned when more is requested than listed.
	ErrAmountExceedsListing = errors.New("amount exceeds listing")
	// ErrNotSeller is returned when someone other than the seller cancels.
	ErrNotSeller = errors.New("only the seller can cancel")
)

// PurchaseResult is the outcome of Purchase.
type PurchaseResult struct {
	domain.TxResult
	ListingID   *big.Int `json:"listingId"`
	Amount      string   `json:"amount"`
	Value       *big.Int `json:"value"`
	ValueText   string   `json:"valueText"` // ETH
	Remaining   string   `json:"remaining"`
	SoldOut     bool     `json:"soldOut"`
	TokenName   string   `json:"tokenName"`
	TokenSymbol string   `json:"tokenSymbol"`
}

// ListingResult is the outcome of CreateListing and Cancel.
type ListingResult struct {
	domain.TxResult
	ListingID *big.Int         `json:"listingId,omitempty"`
	Approval  *domain.TxResult `json:"approval,omitempty"`
}

// Signer is the connected wallet as seen by the service.
type Signer interface {
	txlog.Signer
	CallOpts(ctx context.Context) *bind.CallOpts
}

// Properties resolves the cached property of a token.
type Properties interface {
	Get(ctx context.Context, token common.Address) (*domain.Property, error)
}

// Service serves the marketplace.
type Service struct {
	backend  chain.Backend
	bindings *contracts.Bindings
	signer   Signer
	journal  *txlog.Journal
	store    storage.ListingStore
	props    Properties
	feed     feed.Publisher
	log      *zap.SugaredLogger
	now      func() time.Time
}

// NewService creates the marketplace service.
func NewService(
	backend chain.Backend,
	bindings *contracts.Bindings,
	signer Signer,
	journal *txlog.Journal,
	store storage.ListingStore,
	props Properties,
	pub feed.Publisher,
	log *zap.SugaredLogger,
) *Service {
	if pub == nil {
		pub = feed.Discard
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{
		backend:  backend,
		bindings: bindings,
		signer:   signer,
		journal:  journal,
		store:    store,
		props:    props,
		feed:     pub,
		log:      log,
		now:      time.Now,
	}
}

// Listings returns the cached active listings, reading them from the
// chain when refresh is set or the cache is empty.
func (s *Service) Listings(ctx context.Context, refresh bool) ([]*domain.Listing, error) {
	if !refresh {
		listings, err := s.store.GetAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("load listings: %w", err)
		}
		if len(listings) > 0 {
			return listings, nil
		}
	}
	return s.Refresh(ctx)
}

// Get returns one cached listing, refreshing on a miss.
func (s *Service) Get(ctx context.Context, id *big.Int) (*domain.Listing, error) {
	l, err := s.store.GetByID(ctx, id)
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load listing: %w", err)
	}
	if _, err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s.store.GetByID(ctx, id)
}

// Refresh reads the active listings and enriches them with token
// metadata, each token read once.
func (s *Service) Refresh(ctx context.Context) (listings []*domain.Listing, err error) {
	start := time.Now()
	defer func() {
		observability.RecordCacheRefresh("listings", len(listings), time.Since(start).Seconds(), err)
	}()

	active, err := s.bindings.Marketplace.GetActiveListings(s.signer.CallOpts(ctx))
	if err != nil {
		return nil, fmt.Errorf("get active listings: %w", err)
	}

	infos, err := s.tokenInfos(ctx, active)
	if err != nil {
		return nil, err
	}

	fetchedAt := s.now().UnixMilli()
	listings = make([]*domain.Listing, 0, len(active))
	for _, a := range active {
		info := infos[a.TokenAddress]
		listings = append(listings, &domain.Listing{
			ListingID:         a.ListingID,
			Seller:            a.Seller,
			TokenAddress:      a.TokenAddress,
			TokenName:         info.Name,
			TokenSymbol:       info.Symbol,
			Decimals:          info.Decimals,
			Amount:            a.Amount,
			PricePerToken:     a.PricePerToken,
			AmountText:        chain.FormatUnits(a.Amount, info.Decimals),
			PricePerTokenText: chain.FormatEther(a.PricePerToken),
			TotalPriceText:    chain.FormatEther(chain.PurchaseValue(a.Amount, a.PricePerToken)),
			FetchedAt:         fetchedAt,
		})
	}

	if err := s.store.ReplaceAll(ctx, listings); err != nil {
		return nil, fmt.Errorf("store listings: %w", err)
	}
	s.feed.Publish(feed.CacheRefreshed, feed.CachePayload{Cache: "listings", Entries: len(listings)})
	return listings, nil
}

func (s *Service) tokenInfos(ctx context.Context, active []contracts.ActiveListing) (map[common.Address]*domain.TokenInfo, error) {
	var (
		mu    sync.Mutex
		infos = make(map[common.Address]*domain.TokenInfo)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)

	seen := make(map[common.Address]bool)
	for _, a := range active {
		if seen[a.TokenAddress] {
			continue
		}
		seen[a.TokenAddress] = true
		addr := a.TokenAddress

		g.Go(func() error {
			info, err := s.tokenInfo(gctx, addr)
			if err != nil {
				return err
			}
			mu.Lock()
			infos[addr] = info
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return infos, nil
}

// tokenInfo prefers the property cache and falls back to the token itself.
func (s *Service) tokenInfo(ctx context.Context, token common.Address) (*domain.TokenInfo, error) {
	if s.props != nil {
		if p, err := s.props.Get(ctx, token); err == nil {
			return &domain.TokenInfo{Address: token, Name: p.TokenName, Symbol: p.TokenSymbol, Decimals: p.Decimals}, nil
		}
	}
	info, err := property.ReadTokenInfo(s.signer.CallOpts(ctx), s.bindings.Token(token))
	if err != nil {
		return nil, fmt.Errorf("token %s: %w", token.Hex(), err)
	}
	return info, nil
}

// GroupBySymbol groups listings by token symbol. Groups are ordered by
// symbol and keep the listing order within a group.
func GroupBySymbol(listings []*domain.Listing) []domain.ListingGroup {
	bySymbol := make(map[string][]*domain.Listing)
	for _, l := range listings {
		bySymbol[l.TokenSymbol] = append(bySymbol[l.TokenSymbol], l)
	}

	symbols := make([]string, 0, len(bySymbol))
	for sym := range bySymbol {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	groups := make([]domain.ListingGroup, 0, len(symbols))
	for _, sym := range symbols {
		groups = append(groups, domain.ListingGroup{Symbol: sym, Listings: bySymbol[sym]})
	}
	return groups
}

// FilterSymbol returns the listings of one symbol, case-insensitively.
func FilterSymbol(listings []*domain.Listing, symbol string) []*domain.Listing {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return listings
	}
	out := make([]*domain.Listing, 0, len(listings))
	for _, l := range listings {
		if strings.EqualFold(l.TokenSymbol, symbol) {
			out = append(out, l)
		}
	}
	return out
}

// Purchase buys amount tokens (decimal, whole-token units) from a listing.
// An empty amount buys the whole listing. The payment is
// amount * pricePerToken / 1e18 wei.
func (s *Service) Purchase(ctx context.Context, listingID *big.Int, amount string) (*PurchaseResult, error) {
	buyer, err := s.signer.Address()
	if err != nil {
		return nil, err
	}

	state, err := s.bindings.Marketplace.Listing(s.signer.CallOpts(ctx), listingID)
	if err != nil {
		return nil, fmt.Errorf("read listing %s: %w", listingID, err)
	}
	if !state.IsActive || state.Amount.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrListingNotActive, listingID)
	}
	if state.Seller == buyer {
		return nil, ErrOwnListing
	}

	info, err := s.tokenInfo(ctx, state.TokenAddress)
	if err != nil {
		return nil, err
	}

	units := new(big.Int).Set(state.Amount)
	if strings.TrimSpace(amount) != "" {
		units, err = chain.ParseUnits(amount, info.Decimals)
		if err != nil {
			return nil, fmt.Errorf("%w: amount: %v", domain.ErrInvalidInput, err)
		}
		if units.Sign() <= 0 {
			return nil, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidInput)
		}
		if units.Cmp(state.Amount) > 0 {
			return nil, fmt.Errorf("%w: requested %s, listed %s", ErrAmountExceedsListing,
				chain.FormatUnits(units, info.Decimals), chain.FormatUnits(state.Amount, info.Decimals))
		}
	}
	value := chain.PurchaseValue(units, state.PricePerToken)

	meta := txlog.Meta{
		Kind:         domain.TxKindPurchase,
		TokenAddress: state.TokenAddress,
		PropertyName: s.propertyName(ctx, state.TokenAddress),
		Amount:       chain.FormatUnits(units, info.Decimals),
	}
	receipt, err := s.journal.Execute(ctx, s.signer, s.backend, meta, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		opts.Value = value
		return s.bindings.Marketplace.PurchaseTokens(opts, listingID, units)
	})
	if err != nil {
		return nil, fmt.Errorf("purchase listing %s: %w", listingID, err)
	}
	s.refreshAfter(ctx, "purchase")

	remaining := new(big.Int).Sub(state.Amount, units)
	return &PurchaseResult{
		TxResult:    *txlog.Result(receipt),
		ListingID:   listingID,
		Amount:      meta.Amount,
		Value:       value,
		ValueText:   chain.FormatEther(value),
		Remaining:   chain.FormatUnits(remaining, info.Decimals),
		SoldOut:     remaining.Sign() == 0,
		TokenName:   info.Name,
		TokenSymbol: info.Symbol,
	}, nil
}

// CreateListing offers amount tokens at price ether per token. The
// marketplace is approved first when its allowance is short.
func (s *Service) CreateListing(ctx context.Context, token common.Address, amount, price string) (*ListingResult, error) {
	seller, err := s.signer.Address()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(amount) == "" || strings.TrimSpace(price) == "" {
		return nil, domain.ErrMissingFields
	}

	info, err := s.tokenInfo(ctx, token)
	if err != nil {
		return nil, err
	}
	units, err := chain.ParseUnits(amount, info.Decimals)
	if err != nil || units.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be a positive number", domain.ErrInvalidInput)
	}
	wei, err := chain.ParseEther(price)
	if err != nil || wei.Sign() <= 0 {
		return nil, fmt.Errorf("%w: price must be a positive number", domain.ErrInvalidInput)
	}

	tok := s.bindings.Token(token)
	market := s.bindings.Marketplace.Address()
	propertyName := s.propertyName(ctx, token)
	res := &ListingResult{}

	allowance, err := tok.Allowance(s.signer.CallOpts(ctx), seller, market)
	if err != nil {
		return nil, fmt.Errorf("read allowance: %w", err)
	}
	if allowance.Cmp(units) < 0 {
		meta := txlog.Meta{
			Kind:         domain.TxKindApprove,
			TokenAddress: token,
			PropertyName: propertyName,
			Amount:       amount,
		}
		receipt, err := s.journal.Execute(ctx, s.signer, s.backend, meta, func(opts *bind.TransactOpts) (*types.Transaction, error) {
			return tok.Approve(opts, market, units)
		})
		if err != nil {
			return nil, fmt.Errorf("approve marketplace: %w", err)
		}
		res.Approval = txlog.Result(receipt)
	}

	meta := txlog.Meta{
		Kind:         domain.TxKindSale,
		TokenAddress: token,
		PropertyName: propertyName,
		Amount:       chain.FormatUnits(units, info.Decimals),
	}
	receipt, err := s.journal.Execute(ctx, s.signer, s.backend, meta, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return s.bindings.Marketplace.CreateListing(opts, token, units, wei)
	})
	if err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}
	res.TxResult = *txlog.Result(receipt)
	if id, ok := s.bindings.Marketplace.ListingCreated(receipt); ok {
		res.ListingID = id
	}

	s.refreshAfter(ctx, "create listing")
	return res, nil
}

// Cancel withdraws one of the connected wallet's listings.
func (s *Service) Cancel(ctx context.Context, listingID *big.Int) (*ListingResult, error) {
	me, err := s.signer.Address()
	if err != nil {
		return nil, err
	}

	state, err := s.bindings.Marketplace.Listing(s.signer.CallOpts(ctx), listingID)
	if err != nil {
		return nil, fmt.Errorf("read listing %s: %w", listingID, err)
	}
	if !state.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrListingNotActive, listingID)
	}
	if state.Seller != me {
		return nil, ErrNotSeller
	}

	meta := txlog.Meta{
		Kind:         domain.TxKindCancel,
		TokenAddress: state.TokenAddress,
		PropertyName: s.propertyName(ctx, state.TokenAddress),
	}
	if info, err := s.tokenInfo(ctx, state.TokenAddress); err == nil {
		meta.Amount = chain.FormatUnits(state.Amount, info.Decimals)
	}
	receipt, err := s.journal.Execute(ctx, s.signer, s.backend, meta, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return s.bindings.Marketplace.CancelListing(opts, listingID)
	})
	if err != nil {
		return nil, fmt.Errorf("cancel listing %s: %w", listingID, err)
	}

	s.refreshAfter(ctx, "cancel")
	return &ListingResult{TxResult: *txlog.Result(receipt), ListingID: listingID}, nil
}

func (s *Service) propertyName(ctx context.Context, token common.Address) string {
	if s.props == nil {
		return ""
	}
	if p, err := s.props.Get(ctx, token); err == nil {
		return p.PropertyName
	}
	return ""
}

func (s *Service) refreshAfter(ctx context.Context, op string) {
	if _, err := s.Refresh(ctx); err != nil {
		s.log.Warnf("refresh listings after %s: %v", op, err)
	}
}
