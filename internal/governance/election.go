package governance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"realestate-token-hub/internal/chain"
	"realestate-token-hub/internal/contracts"
	"realestate-token-hub/internal/domain"
	"realestate-token-hub/internal/feed"
	"realestate-token-hub/internal/observability"
	"realestate-token-hub/internal/storage"
	"realestate-token-hub/internal/txlog"
)

// FinalizeResult is the outcome of FinalizeElection.
type FinalizeResult struct {
	Finalize   domain.TxResult  `json:"finalize"`
	SetManager *domain.TxResult `json:"setManager,omitempty"`
	Manager    common.Address   `json:"manager"`
}

// ResolveDAO returns the DAO binding of a property token.
func (s *Service) ResolveDAO(ctx context.Context, token common.Address) (*contracts.PropertyDAO, error) {
	addr, err := s.bindings.Factory.GetDAOByToken(s.signer.CallOpts(ctx), token)
	if err != nil {
		return nil, fmt.Errorf("resolve dao of %s: %w", token.Hex(), err)
	}
	if addr == (common.Address{}) {
		return nil, fmt.Errorf("%w: %s", ErrDAONotFound, token.Hex())
	}
	return s.bindings.PropertyDAO(addr), nil
}

// Election returns the election of a token. The cached view is used
// unless refresh is set or nothing is cached.
func (s *Service) Election(ctx context.Context, token common.Address, refresh bool) (*domain.Election, error) {
	if !refresh {
		e, err := s.elections.Get(ctx, token)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("load election: %w", err)
		}
	}
	return s.RefreshElection(ctx, token)
}

// RefreshElection reads the election of a token from the chain.
func (s *Service) RefreshElection(ctx context.Context, token common.Address) (e *domain.Election, err error) {
	start := time.Now()
	defer func() {
		n := 0
		if e != nil {
			n = len(e.Candidates)
		}
		observability.RecordCacheRefresh("elections", n, time.Since(start).Seconds(), err)
	}()

	dao, err := s.ResolveDAO(ctx, token)
	if err != nil {
		return nil, err
	}
	opts := s.signer.CallOpts(ctx)

	manager, err := s.bindings.Token(token).PropertyManager(opts)
	if err != nil {
		return nil, err
	}
	daoManager, err := dao.Manager(opts)
	if err != nil {
		return nil, err
	}
	addrs, err := dao.GetCandidates(opts)
	if err != nil {
		return nil, err
	}

	var decimals uint8 = 18
	if s.props != nil {
		if p, err := s.props.Get(ctx, token); err == nil {
			decimals = p.Decimals
		}
	}

	candidates := make([]*domain.Candidate, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, addr := range addrs {
		g.Go(func() error {
			votes, err := dao.Votes(s.signer.CallOpts(gctx), addr)
			if err != nil {
				return err
			}
			candidates[i] = &domain.Candidate{
				Address:   addr,
				Votes:     votes,
				VotesText: chain.FormatUnits(votes, decimals),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e = &domain.Election{
		TokenAddress: token,
		DAOAddress:   dao.Address(),
		Manager:      manager,
		DAOManager:   daoManager,
		Candidates:   candidates,
		FetchedAt:    s.now().UnixMilli(),
	}
	if err := s.elections.Put(ctx, e); err != nil {
		return nil, fmt.Errorf("store election: %w", err)
	}
	s.feed.Publish(feed.CacheRefreshed, feed.CachePayload{Cache: "elections", Entries: len(candidates)})
	return e, nil
}

// GetCandidates returns the candidates of a token's election with their
// vote weight.
func (s *Service) GetCandidates(ctx context.Context, token common.Address) ([]*domain.Candidate, error) {
	e, err := s.RefreshElection(ctx, token)
	if err != nil {
		return nil, err
	}
	return e.Candidates, nil
}

// GetManager returns the manager recorded by the DAO.
func (s *Service) GetManager(ctx context.Context, token common.Address) (common.Address, error) {
	dao, err := s.ResolveDAO(ctx, token)
	if err != nil {
		return common.Address{}, err
	}
	return dao.Manager(s.signer.CallOpts(ctx))
}

// ProposeCandidate nominates candidate in the election of token.
func (s *Service) ProposeCandidate(ctx context.Context, token common.Address, candidate string) (*domain.TxResult, error) {
	addr, err := domain.ParseAddress(candidate)
	if err != nil {
		return nil, err
	}
	dao, err := s.ResolveDAO(ctx, token)
	if err != nil {
		return nil, err
	}

	meta := s.meta(ctx, domain.TxKindProposeManager, token)
	receipt, err := s.journal.Execute(ctx, s.signer, s.backend, meta, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return dao.ProposeManager(opts, addr)
	})
	if err != nil {
		return nil, fmt.Errorf("propose candidate %s: %w", addr.Hex(), err)
	}
	s.refreshElectionAfter(ctx, token)
	return txlog.Result(receipt), nil
}

// Vote casts the connected wallet's vote for candidate.
func (s *Service) Vote(ctx context.Context, token common.Address, candidate string) (*domain.TxResult, error) {
	addr, err := domain.ParseAddress(candidate)
	if err != nil {
		return nil, err
	}
	dao, err := s.ResolveDAO(ctx, token)
	if err != nil {
		return nil, err
	}

	meta := s.meta(ctx, domain.TxKindVoteManager, token)
	receipt, err := s.journal.Execute(ctx, s.signer, s.backend, meta, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return dao.Vote(opts, addr)
	})
	if err != nil {
		return nil, fmt.Errorf("vote for %s: %w", addr.Hex(), err)
	}
	s.refreshElectionAfter(ctx, token)
	return txlog.Result(receipt), nil
}

// FinalizeElection closes the election and hands the token's property
// manager role to the winner. Only the current property manager may do so.
func (s *Service) FinalizeElection(ctx context.Context, token common.Address) (*FinalizeResult, error) {
	me, err := s.signer.Address()
	if err != nil {
		return nil, err
	}
	dao, err := s.ResolveDAO(ctx, token)
	if err != nil {
		return nil, err
	}
	tok := s.bindings.Token(token)

	current, err := tok.PropertyManager(s.signer.CallOpts(ctx))
	if err != nil {
		return nil, err
	}
	if current != me {
		return nil, ErrNotManager
	}

	receipt, err := s.journal.Execute(ctx, s.signer, s.backend, s.meta(ctx, domain.TxKindFinalizeElection, token),
		func(opts *bind.TransactOpts) (*types.Transaction, error) {
			return dao.Finalize(opts)
		})
	if err != nil {
		return nil, fmt.Errorf("finalize election: %w", err)
	}
	res := &FinalizeResult{Finalize: *txlog.Result(receipt)}

	winner, err := dao.Manager(s.signer.CallOpts(ctx))
	if err != nil {
		return nil, fmt.Errorf("read elected manager: %w", err)
	}
	res.Manager = winner

	if winner != current && winner != (common.Address{}) {
		receipt, err := s.journal.Execute(ctx, s.signer, s.backend, s.meta(ctx, domain.TxKindSetManager, token),
			func(opts *bind.TransactOpts) (*types.Transaction, error) {
				return tok.SetPropertyManager(opts, winner)
			})
		if err != nil {
			return nil, fmt.Errorf("set property manager: %w", err)
		}
		res.SetManager = txlog.Result(receipt)
	}

	s.log.Infof("election of %s finalized, manager %s", token.Hex(), winner.Hex())
	s.refreshElectionAfter(ctx, token)
	return res, nil
}

func (s *Service) meta(ctx context.Context, kind domain.TxKind, token common.Address) txlog.Meta {
	return txlog.Meta{
		Kind:         kind,
		TokenAddress: token,
		PropertyName: s.propertyName(ctx, token),
	}
}

func (s *Service) refreshElectionAfter(ctx context.Context, token common.Address) {
	if _, err := s.RefreshElection(ctx, token); err != nil {
		s.log.Warnf("refresh election of %s: %v", token.Hex(), err)
	}
}
