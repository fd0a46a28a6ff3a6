// Package txlog journals every transaction the service submits and answers
// the transaction history queries.
package txlog

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"realestate-token-hub/internal/chain"
	"realestate-token-hub/internal/domain"
	"realestate-token-hub/internal/feed"
	"realestate-token-hub/internal/observability"
	"realestate-token-hub/internal/storage"
)

// Meta describes a transaction for the journal.
type Meta struct {
	Kind         domain.TxKind
	From         common.Address
	TokenAddress common.Address
	PropertyName string
	Amount       string
}

// Journal appends transaction status events to a TxEventStore and
// publishes them on the feed.
type Journal struct {
	store storage.TxEventStore
	feed  feed.Publisher
	log   *zap.SugaredLogger
	now   func() time.Time

	// confirmTimeout bounds tracking that outlives the caller's context.
	confirmTimeout time.Duration
}

// DefaultConfirmTimeout is how long a transaction is still awaited after
// the submitting request went away.
const DefaultConfirmTimeout = 15 * time.Minute

// NewJournal creates a journal.
func NewJournal(store storage.TxEventStore, pub feed.Publisher, log *zap.SugaredLogger) *Journal {
	if pub == nil {
		pub = feed.Discard
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Journal{
		store:          store,
		feed:           pub,
		log:            log,
		now:            time.Now,
		confirmTimeout: DefaultConfirmTimeout,
	}
}

// Begin journals a submitted transaction as pending.
func (j *Journal) Begin(ctx context.Context, tx *types.Transaction, meta Meta) (*domain.TxEvent, error) {
	e := &domain.TxEvent{
		Hash:         tx.Hash(),
		Status:       domain.TxStatusPending,
		Kind:         meta.Kind,
		From:         meta.From,
		TokenAddress: meta.TokenAddress,
		PropertyName: meta.PropertyName,
		Amount:       meta.Amount,
		Timestamp:    j.now().UnixMilli(),
	}
	if to := tx.To(); to != nil {
		e.To = *to
	}
	return e, j.append(ctx, e, feed.TxPending)
}

// Complete journals the successful receipt of a pending transaction.
func (j *Journal) Complete(ctx context.Context, pending *domain.TxEvent, receipt *types.Receipt) error {
	e := *pending
	e.Status = domain.TxStatusCompleted
	e.Timestamp = j.now().UnixMilli()
	if receipt != nil && receipt.BlockNumber != nil {
		e.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return j.append(ctx, &e, feed.TxCompleted)
}

// Fail journals a failed transaction with its cause.
func (j *Journal) Fail(ctx context.Context, pending *domain.TxEvent, receipt *types.Receipt, cause error) error {
	e := *pending
	e.Status = domain.TxStatusFailed
	e.Timestamp = j.now().UnixMilli()
	if receipt != nil && receipt.BlockNumber != nil {
		e.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if cause != nil {
		e.Error = cause.Error()
		if reason := chain.RevertReason(cause); reason != "" {
			e.Error = reason
		}
	}
	return j.append(ctx, &e, feed.TxFailed)
}

// Track journals tx as pending, waits until it is mined and journals the
// outcome. The returned error is the chain's; journal write failures are
// only logged. When ctx ends before the receipt arrives the entry stays
// pending and the transaction is awaited in the background.
func (j *Journal) Track(ctx context.Context, backend bind.DeployBackend, tx *types.Transaction, meta Meta) (*types.Receipt, error) {
	pending, err := j.Begin(ctx, tx, meta)
	if err != nil {
		j.log.Warnf("journal %s pending: %v", tx.Hash().Hex(), err)
	}

	receipt, waitErr := chain.WaitMined(ctx, backend, tx)
	if receipt == nil && ctx.Err() != nil {
		go j.awaitDetached(context.WithoutCancel(ctx), backend, tx, pending)
		return nil, waitErr
	}

	j.settle(ctx, tx, pending, receipt, waitErr)
	return receipt, waitErr
}

func (j *Journal) awaitDetached(ctx context.Context, backend bind.DeployBackend, tx *types.Transaction, pending *domain.TxEvent) {
	ctx, cancel := context.WithTimeout(ctx, j.confirmTimeout)
	defer cancel()

	j.log.Infof("still waiting for %s after the request ended", tx.Hash().Hex())
	receipt, err := chain.WaitMined(ctx, backend, tx)
	if receipt == nil && err != nil {
		j.log.Warnf("gave up waiting for %s, left pending: %v", tx.Hash().Hex(), err)
		return
	}
	j.settle(ctx, tx, pending, receipt, err)
}

// settle journals a mined transaction. Only a receipt decides the outcome.
func (j *Journal) settle(ctx context.Context, tx *types.Transaction, pending *domain.TxEvent, receipt *types.Receipt, waitErr error) {
	if pending == nil {
		return
	}
	if waitErr != nil {
		if err := j.Fail(ctx, pending, receipt, waitErr); err != nil {
			j.log.Warnf("journal %s failed: %v", tx.Hash().Hex(), err)
		}
		return
	}
	if err := j.Complete(ctx, pending, receipt); err != nil {
		j.log.Warnf("journal %s completed: %v", tx.Hash().Hex(), err)
	}
}

func (j *Journal) append(ctx context.Context, e *domain.TxEvent, t feed.EventType) error {
	observability.RecordTransaction(string(e.Kind), string(e.Status))

	if err := j.store.Insert(ctx, e); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil
		}
		return err
	}
	j.log.Infof("%s %s %s", e.Kind, e.Hash.Hex(), e.Status)
	j.feed.Publish(t, e)
	return nil
}

// Signer submits transactions with serialized nonces.
type Signer interface {
	Address() (common.Address, error)
	Submit(ctx context.Context, send func(opts *bind.TransactOpts) (*types.Transaction, error)) (*types.Transaction, error)
}

// Execute submits a transaction through signer and tracks it until mined.
// meta.From is filled from the signer.
func (j *Journal) Execute(ctx context.Context, signer Signer, backend bind.DeployBackend, meta Meta, send func(opts *bind.TransactOpts) (*types.Transaction, error)) (*types.Receipt, error) {
	from, err := signer.Address()
	if err != nil {
		return nil, err
	}
	meta.From = from

	tx, err := signer.Submit(ctx, send)
	if err != nil {
		return nil, err
	}
	return j.Track(ctx, backend, tx, meta)
}

// Result summarizes a mined receipt.
func Result(receipt *types.Receipt) *domain.TxResult {
	res := &domain.TxResult{
		Hash:   receipt.TxHash,
		Status: domain.TxStatusCompleted,
	}
	if receipt.BlockNumber != nil {
		res.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		res.Status = domain.TxStatusFailed
	}
	return res
}
