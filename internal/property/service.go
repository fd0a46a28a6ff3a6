// Package property lists property tokens and creates new ones through the
// factory contract.
package property

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
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
	"realestate-token-hub/internal/storage"
	"realestate-token-hub/internal/txlog"
)

// TokenDecimals is the decimals used for new property tokens.
const TokenDecimals = 18

// fetchConcurrency bounds the concurrent enrichment calls.
const fetchConcurrency = 8

// CreateTokenRequest describes a new property token. InitialSupply is in
// whole tokens.
type CreateTokenRequest struct {
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	PropertyName  string `json:"propertyName"`
	InitialSupply string `json:"initialSupply"`
}

// CreateResult is the outcome of Create. TokenAddress and DAOAddress are
// zero when the receipt carries no PropertyTokenCreated event.
type CreateResult struct {
	domain.TxResult
	TokenAddress common.Address   `json:"tokenAddress"`
	DAOAddress   common.Address   `json:"daoAddress"`
	Property     *domain.Property `json:"property,omitempty"`
}

// Signer is the connected wallet as seen by the service.
type Signer interface {
	txlog.Signer
	CallOpts(ctx context.Context) *bind.CallOpts
}

// Service serves the property list.
type Service struct {
	backend  chain.Backend
	bindings *contracts.Bindings
	signer   Signer
	journal  *txlog.Journal
	store    storage.PropertyStore
	feed     feed.Publisher
	log      *zap.SugaredLogger
	now      func() time.Time
}

// NewService creates the property service.
func NewService(
	backend chain.Backend,
	bindings *contracts.Bindings,
	signer Signer,
	journal *txlog.Journal,
	store storage.PropertyStore,
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
		feed:     pub,
		log:      log,
		now:      time.Now,
	}
}

// Validate checks a create request and returns the supply in base units.
func (r CreateTokenRequest) Validate() (*big.Int, error) {
	if strings.TrimSpace(r.Name) == "" ||
		strings.TrimSpace(r.Symbol) == "" ||
		strings.TrimSpace(r.PropertyName) == "" ||
		strings.TrimSpace(r.InitialSupply) == "" {
		return nil, domain.ErrMissingFields
	}
	supply, err := chain.ParseUnits(r.InitialSupply, TokenDecimals)
	if err != nil {
		return nil, fmt.Errorf("%w: initial supply: %v", domain.ErrInvalidInput, err)
	}
	if supply.Sign() <= 0 {
		return nil, fmt.Errorf("%w: initial supply must be positive", domain.ErrInvalidInput)
	}
	return supply, nil
}

// Create mints a new property token through the factory, waits for the
// receipt and refreshes the cache.
func (s *Service) Create(ctx context.Context, req CreateTokenRequest) (*CreateResult, error) {
	supply, err := req.Validate()
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	symbol := strings.TrimSpace(req.Symbol)
	propertyName := strings.TrimSpace(req.PropertyName)

	meta := txlog.Meta{
		Kind:         domain.TxKindMint,
		PropertyName: propertyName,
		Amount:       chain.FormatUnits(supply, TokenDecimals),
	}
	receipt, err := s.journal.Execute(ctx, s.signer, s.backend, meta, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return s.bindings.Factory.CreatePropertyToken(opts, name, symbol, propertyName, supply)
	})
	if err != nil {
		return nil, fmt.Errorf("create property token: %w", err)
	}

	res := &CreateResult{TxResult: *txlog.Result(receipt)}
	if token, dao, ok := s.bindings.Factory.PropertyTokenCreated(receipt); ok {
		res.TokenAddress = token
		res.DAOAddress = dao
	}

	if _, err := s.Refresh(ctx); err != nil {
		s.log.Warnf("refresh after create: %v", err)
	} else if res.TokenAddress != (common.Address{}) {
		if p, err := s.store.GetByToken(ctx, res.TokenAddress); err == nil {
			res.Property = p
		}
	}

	s.log.Infof("created property token %s (%s) for %q", res.TokenAddress.Hex(), symbol, propertyName)
	return res, nil
}

// List returns the cached properties. The cache is filled from the chain
// when refresh is set or when it is empty.
func (s *Service) List(ctx context.Context, refresh bool) ([]*domain.Property, error) {
	if !refresh {
		props, err := s.store.GetAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("load properties: %w", err)
		}
		if len(props) > 0 {
			return props, nil
		}
	}
	return s.Refresh(ctx)
}

// Get returns one property, refreshing the cache on a miss.
func (s *Service) Get(ctx context.Context, token common.Address) (*domain.Property, error) {
	p, err := s.store.GetByToken(ctx, token)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load property: %w", err)
	}

	if _, err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s.store.GetByToken(ctx, token)
}

// Refresh reads every property from the factory, enriches it with token
// metadata and replaces the cache.
func (s *Service) Refresh(ctx context.Context) (props []*domain.Property, err error) {
	start := time.Now()
	defer func() {
		observability.RecordCacheRefresh("properties", len(props), time.Since(start).Seconds(), err)
	}()

	opts := s.signer.CallOpts(ctx)
	entries, err := s.bindings.Factory.GetAllProperties(opts)
	if err != nil {
		return nil, fmt.Errorf("get all properties: %w", err)
	}

	fetchedAt := s.now().UnixMilli()
	props = make([]*domain.Property, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, entry := range entries {
		g.Go(func() error {
			p, err := s.fetch(s.signer.CallOpts(gctx), entry)
			if err != nil {
				return err
			}
			p.FetchedAt = fetchedAt
			props[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.store.ReplaceAll(ctx, props); err != nil {
		return nil, fmt.Errorf("store properties: %w", err)
	}
	s.feed.Publish(feed.CacheRefreshed, feed.CachePayload{Cache: "properties", Entries: len(props)})
	return props, nil
}

func (s *Service) fetch(opts *bind.CallOpts, entry contracts.FactoryProperty) (*domain.Property, error) {
	token := s.bindings.Token(entry.TokenAddress)

	info, err := ReadTokenInfo(opts, token)
	if err != nil {
		return nil, err
	}
	supply, err := token.TotalSupply(opts)
	if err != nil {
		return nil, err
	}

	// Manager and DAO are extras; a token that cannot answer keeps them zero.
	manager, err := token.PropertyManager(opts)
	if err != nil {
		s.log.Warnf("read manager of %s: %v", entry.TokenAddress.Hex(), err)
		manager = common.Address{}
	}
	dao, err := s.bindings.Factory.GetDAOByToken(opts, entry.TokenAddress)
	if err != nil {
		s.log.Warnf("read DAO of %s: %v", entry.TokenAddress.Hex(), err)
		dao = common.Address{}
	}

	return &domain.Property{
		TokenAddress:    entry.TokenAddress,
		PropertyName:    entry.Name,
		TokenName:       info.Name,
		TokenSymbol:     info.Symbol,
		Decimals:        info.Decimals,
		TotalSupply:     supply,
		TotalSupplyText: chain.FormatUnits(supply, info.Decimals),
		DAOAddress:      dao,
		Manager:         manager,
	}, nil
}

// ReadTokenInfo reads the ERC20 metadata of a token.
func ReadTokenInfo(opts *bind.CallOpts, token *contracts.Token) (*domain.TokenInfo, error) {
	name, err := token.Name(opts)
	if err != nil {
		return nil, err
	}
	symbol, err := token.Symbol(opts)
	if err != nil {
		return nil, err
	}
	decimals, err := token.Decimals(opts)
	if err != nil {
		return nil, err
	}
	return &domain.TokenInfo{
		Address:  token.Address(),
		Name:     name,
		Symbol:   symbol,
		Decimals: decimals,
	}, nil
}
