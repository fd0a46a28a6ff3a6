// Package chain provides access to the EVM node: a retrying read client,
// receipt waiting, revert decoding and token unit conversion.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"realestate-token-hub/internal/observability"
)

// ErrTxFailed is returned when a mined transaction has a failed receipt.
var ErrTxFailed = errors.New("transaction failed")

// Backend is everything the services need from a node.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// WaitMined blocks until tx is mined and returns its receipt. A receipt
// with failed status is returned together with ErrTxFailed.
func WaitMined(ctx context.Context, backend bind.DeployBackend, tx *types.Transaction) (*types.Receipt, error) {
	start := time.Now()
	receipt, err := bind.WaitMined(ctx, backend, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}
	observability.RecordConfirmation(time.Since(start).Seconds())

	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s in block %d", ErrTxFailed, tx.Hash().Hex(), receipt.BlockNumber.Uint64())
	}
	return receipt, nil
}
