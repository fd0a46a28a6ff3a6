// Package governance runs the per-property manager elections and the
// public-issue proposals of the IssueDAO.
package governance

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"realestate-token-hub/internal/chain"
	"realestate-token-hub/internal/contracts"
	"realestate-token-hub/internal/domain"
	"realestate-token-hub/internal/feed"
	"realestate-token-hub/internal/storage"
	"realestate-token-hub/internal/txlog"
)

const fetchConcurrency = 8

// MaxProposals bounds the proposal count read from the IssueDAO.
const MaxProposals = 10000

var (
	// ErrDAONotFound is returned when the factory has no DAO for a token.
	ErrDAONotFound = errors.New("dao not found")
	// ErrNotManager is returned when someone other than the current
	// property manager finalizes an election.
	ErrNotManager = errors.New("caller is not the property manager")
	// ErrIssueDAOUnavailable is returned when the deployment has no IssueDAO.
	ErrIssueDAOUnavailable = errors.New("issue dao not deployed")
	// ErrProposalNotFound is returned for proposal IDs past the count.
	ErrProposalNotFound = errors.New("proposal not found")
	// ErrNotExecutable is returned when a proposal is not passed or was
	// already executed.
	ErrNotExecutable = errors.New("proposal not executable")
	// ErrTooManyProposals is returned when the IssueDAO reports more
	// proposals than MaxProposals.
	ErrTooManyProposals = errors.New("proposal count out of range")
)

// Signer is the connected wallet as seen by the service.
type Signer interface {
	txlog.Signer
	CallOpts(ctx context.Context) *bind.CallOpts
}

// Properties resolves the cached property of a token.
type Properties interface {
	Get(ctx context.Context, token common.Address) (*domain.Property, error)
}

// Service serves elections and proposals.
type Service struct {
	backend   chain.Backend
	bindings  *contracts.Bindings
	signer    Signer
	journal   *txlog.Journal
	elections storage.ElectionStore
	proposals storage.ProposalStore
	props     Properties
	feed      feed.Publisher
	log       *zap.SugaredLogger
	now       func() time.Time
}

// Config groups the service's collaborators.
type Config struct {
	Backend   chain.Backend
	Bindings  *contracts.Bindings
	Signer    Signer
	Journal   *txlog.Journal
	Elections storage.ElectionStore
	Proposals storage.ProposalStore
	Props     Properties
	Feed      feed.Publisher
	Log       *zap.SugaredLogger
}

// NewService creates the governance service.
func NewService(cfg Config) *Service {
	if cfg.Feed == nil {
		cfg.Feed = feed.Discard
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop().Sugar()
	}
	return &Service{
		backend:   cfg.Backend,
		bindings:  cfg.Bindings,
		signer:    cfg.Signer,
		journal:   cfg.Journal,
		elections: cfg.Elections,
		proposals: cfg.Proposals,
		props:     cfg.Props,
		feed:      cfg.Feed,
		log:       cfg.Log,
		now:       time.Now,
	}
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
