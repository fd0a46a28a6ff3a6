package governance

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"realestate-token-hub/internal/contracts"
	"realestate-token-hub/internal/domain"
	"realestate-token-hub/internal/feed"
	"realestate-token-hub/internal/observability"
	"realestate-token-hub/internal/txlog"
)

func (s *Service) issueDAO() (*contracts.IssueDAO, error) {
	if s.bindings.IssueDAO == nil {
		return nil, ErrIssueDAOUnavailable
	}
	return s.bindings.IssueDAO, nil
}

// Proposals returns the IssueDAO proposals, from the cache unless refresh
// is set or nothing is cached.
func (s *Service) Proposals(ctx context.Context, refresh bool) ([]*domain.Proposal, error) {
	if _, err := s.issueDAO(); err != nil {
		return nil, err
	}
	if !refresh {
		cached, err := s.proposals.GetAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("load proposals: %w", err)
		}
		if len(cached) > 0 {
			return cached, nil
		}
	}
	return s.RefreshProposals(ctx)
}

// Proposal returns one proposal read from the chain.
func (s *Service) Proposal(ctx context.Context, id uint64) (*domain.Proposal, error) {
	dao, err := s.issueDAO()
	if err != nil {
		return nil, err
	}
	opts := s.signer.CallOpts(ctx)

	count, err := dao.GetProposalCount(opts)
	if err != nil {
		return nil, err
	}
	if new(big.Int).SetUint64(id).Cmp(count) >= 0 {
		return nil, fmt.Errorf("%w: %d", ErrProposalNotFound, id)
	}
	return s.readProposal(opts, dao, id)
}

// RefreshProposals reads every proposal and replaces the cache.
func (s *Service) RefreshProposals(ctx context.Context) (proposals []*domain.Proposal, err error) {
	start := time.Now()
	defer func() {
		observability.RecordCacheRefresh("proposals", len(proposals), time.Since(start).Seconds(), err)
	}()

	dao, err := s.issueDAO()
	if err != nil {
		return nil, err
	}
	count, err := dao.GetProposalCount(s.signer.CallOpts(ctx))
	if err != nil {
		return nil, err
	}
	if !count.IsUint64() || count.Uint64() > MaxProposals {
		return nil, fmt.Errorf("%w: %s", ErrTooManyProposals, count)
	}

	n := count.Uint64()
	proposals = make([]*domain.Proposal, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i := uint64(0); i < n; i++ {
		g.Go(func() error {
			p, err := s.readProposal(s.signer.CallOpts(gctx), dao, i)
			if err != nil {
				return err
			}
			proposals[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.proposals.ReplaceAll(ctx, proposals); err != nil {
		return nil, fmt.Errorf("store proposals: %w", err)
	}
	s.feed.Publish(feed.CacheRefreshed, feed.CachePayload{Cache: "proposals", Entries: len(proposals)})
	return proposals, nil
}

func (s *Service) readProposal(opts *bind.CallOpts, dao *contracts.IssueDAO, id uint64) (*domain.Proposal, error) {
	raw, err := dao.GetProposal(opts, new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	return &domain.Proposal{
		ID:           id,
		Content:      raw.Content,
		VotesFor:     raw.VotesFor,
		VotesAgainst: raw.VotesAgainst,
		Finalized:    raw.Finalized,
		Passed:       raw.Passed,
		Executed:     raw.Executed,
		FetchedAt:    s.now().UnixMilli(),
	}, nil
}

// CreateProposal submits a new public-issue proposal.
func (s *Service) CreateProposal(ctx context.Context, content string) (*domain.TxResult, error) {
	dao, err := s.issueDAO()
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrMissingFields
	}

	return s.executeProposalTx(ctx, domain.TxKindCreateProposal, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return dao.CreateProposal(opts, content)
	})
}

// VoteProposal votes for or against a proposal.
func (s *Service) VoteProposal(ctx context.Context, id uint64, support bool) (*domain.TxResult, error) {
	dao, err := s.issueDAO()
	if err != nil {
		return nil, err
	}
	if _, err := s.Proposal(ctx, id); err != nil {
		return nil, err
	}
	return s.executeProposalTx(ctx, domain.TxKindVoteProposal, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return dao.Vote(opts, new(big.Int).SetUint64(id), support)
	})
}

// FinalizeProposal closes voting on a proposal.
func (s *Service) FinalizeProposal(ctx context.Context, id uint64) (*domain.TxResult, error) {
	dao, err := s.issueDAO()
	if err != nil {
		return nil, err
	}
	if _, err := s.Proposal(ctx, id); err != nil {
		return nil, err
	}
	return s.executeProposalTx(ctx, domain.TxKindFinalizeProposal, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return dao.FinalizeProposal(opts, new(big.Int).SetUint64(id))
	})
}

// ExecuteProposal executes a passed proposal that was not executed yet.
func (s *Service) ExecuteProposal(ctx context.Context, id uint64) (*domain.TxResult, error) {
	dao, err := s.issueDAO()
	if err != nil {
		return nil, err
	}
	p, err := s.Proposal(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Executable() {
		return nil, fmt.Errorf("%w: %d", ErrNotExecutable, id)
	}
	return s.executeProposalTx(ctx, domain.TxKindExecuteProposal, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return dao.ExecuteProposal(opts, new(big.Int).SetUint64(id))
	})
}

func (s *Service) executeProposalTx(ctx context.Context, kind domain.TxKind, send func(opts *bind.TransactOpts) (*types.Transaction, error)) (*domain.TxResult, error) {
	receipt, err := s.journal.Execute(ctx, s.signer, s.backend, txlog.Meta{Kind: kind}, send)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	if _, err := s.RefreshProposals(ctx); err != nil {
		s.log.Warnf("refresh proposals after %s: %v", kind, err)
	}
	return txlog.Result(receipt), nil
}
