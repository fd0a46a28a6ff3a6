// Package wallet holds the connected signing session: the key, the chain
// it was verified against and the lock that serializes submissions.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"realestate-token-hub/internal/chain"
	"realestate-token-hub/internal/feed"
	"realestate-token-hub/internal/observability"
)

var (
	// ErrNotConnected is returned when an operation needs a signer.
	ErrNotConnected = errors.New("wallet not connected")
	// ErrWrongChain is returned when the node serves another chain.
	ErrWrongChain = errors.New("wrong chain")
	// ErrNoKey is returned when a key source carries no key.
	ErrNoKey = errors.New("no key configured")
)

// ChainMismatchError reports the chain the node serves and the expected one.
type ChainMismatchError struct {
	Have int64
	Want int64
}

func (e *ChainMismatchError) Error() string {
	return fmt.Sprintf("wrong chain: node reports %d, expected %d", e.Have, e.Want)
}

// Is makes errors.Is(err, ErrWrongChain) match.
func (e *ChainMismatchError) Is(target error) bool {
	return target == ErrWrongChain
}

// KeySource is where a signing key comes from: a hex private key or an
// encrypted keystore file.
type KeySource struct {
	PrivateKey   string
	KeystoreFile string
	Passphrase   string
}

// Empty reports whether no key is configured.
func (s KeySource) Empty() bool {
	return strings.TrimSpace(s.PrivateKey) == "" && strings.TrimSpace(s.KeystoreFile) == ""
}

// Load decrypts or decodes the key.
func (s KeySource) Load() (*ecdsa.PrivateKey, error) {
	switch {
	case s.Empty():
		return nil, ErrNoKey
	case strings.TrimSpace(s.PrivateKey) != "":
		hexKey := strings.TrimPrefix(strings.TrimSpace(s.PrivateKey), "0x")
		key, err := crypto.HexToECDSA(hexKey)
		if err != nil {
			// The decoder error may quote key material.
			return nil, errors.New("invalid private key")
		}
		return key, nil
	default:
		data, err := os.ReadFile(s.KeystoreFile)
		if err != nil {
			return nil, fmt.Errorf("read keystore: %w", err)
		}
		k, err := keystore.DecryptKey(data, s.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("decrypt keystore: %w", err)
		}
		return k.PrivateKey, nil
	}
}

// Info is the public view of the wallet.
type Info struct {
	Connected   bool           `json:"connected"`
	Address     common.Address `json:"address,omitempty"`
	ChainID     int64          `json:"chainId,omitempty"`
	Balance     *big.Int       `json:"balance,omitempty"`
	BalanceText string         `json:"balanceText,omitempty"` // ETH
}

// EventPayload is published with wallet lifecycle events.
type EventPayload struct {
	Address common.Address `json:"address"`
	ChainID int64          `json:"chainId"`
	Reason  string         `json:"reason,omitempty"`
}

type session struct {
	address common.Address
	key     *ecdsa.PrivateKey
}

// Wallet is the connected signing session.
type Wallet struct {
	backend chain.Backend
	chainID int64
	feed    feed.Publisher
	log     *zap.SugaredLogger

	mu      sync.RWMutex
	session *session

	// submitMu serializes nonce allocation and sending.
	submitMu sync.Mutex
}

// New creates a disconnected wallet for the expected chain.
func New(backend chain.Backend, chainID int64, pub feed.Publisher, log *zap.SugaredLogger) *Wallet {
	if pub == nil {
		pub = feed.Discard
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Wallet{backend: backend, chainID: chainID, feed: pub, log: log}
}

// ChainID returns the expected chain ID.
func (w *Wallet) ChainID() int64 {
	return w.chainID
}

// Connect loads the key and verifies the node's chain. Connecting while
// connected replaces the account.
func (w *Wallet) Connect(ctx context.Context, src KeySource) (common.Address, error) {
	key, err := src.Load()
	if err != nil {
		return common.Address{}, err
	}
	if err := w.verifyChain(ctx); err != nil {
		return common.Address{}, err
	}

	addr := crypto.PubkeyToAddress(key.PublicKey)

	w.mu.Lock()
	prev := w.session
	w.session = &session{address: addr, key: key}
	w.mu.Unlock()

	observability.SetWalletConnected(true)
	switch {
	case prev == nil:
		w.emit(feed.WalletConnected, EventPayload{Address: addr, ChainID: w.chainID})
		w.log.Infof("connected %s on chain %d", addr.Hex(), w.chainID)
	case prev.address != addr:
		w.emit(feed.WalletAccountChanged, EventPayload{Address: addr, ChainID: w.chainID})
		w.log.Infof("account changed %s -> %s", prev.address.Hex(), addr.Hex())
	}
	return addr, nil
}

// Restore reconnects from the configured key on startup. A source without
// a key is not an error.
func (w *Wallet) Restore(ctx context.Context, src KeySource) (bool, error) {
	if src.Empty() {
		return false, nil
	}
	if _, err := w.Connect(ctx, src); err != nil {
		return false, fmt.Errorf("restore wallet: %w", err)
	}
	return true, nil
}

// SwitchAccount replaces the connected key. The wallet must be connected.
func (w *Wallet) SwitchAccount(ctx context.Context, src KeySource) (common.Address, error) {
	if !w.Connected() {
		return common.Address{}, ErrNotConnected
	}
	return w.Connect(ctx, src)
}

// Disconnect drops the session.
func (w *Wallet) Disconnect() {
	w.disconnect("")
}

func (w *Wallet) disconnect(reason string) {
	w.mu.Lock()
	prev := w.session
	w.session = nil
	w.mu.Unlock()

	if prev == nil {
		return
	}
	observability.SetWalletConnected(false)
	w.emit(feed.WalletDisconnected, EventPayload{Address: prev.address, ChainID: w.chainID, Reason: reason})
	w.log.Infof("disconnected %s", prev.address.Hex())
}

// Connected reports whether a session exists.
func (w *Wallet) Connected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.session != nil
}

// Address returns the connected address.
func (w *Wallet) Address() (common.Address, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.session == nil {
		return common.Address{}, ErrNotConnected
	}
	return w.session.address, nil
}

// Info returns the wallet state with the current ether balance.
func (w *Wallet) Info(ctx context.Context) (*Info, error) {
	addr, err := w.Address()
	if err != nil {
		return &Info{}, nil
	}
	balance, err := w.backend.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", addr.Hex(), err)
	}
	return &Info{
		Connected:   true,
		Address:     addr,
		ChainID:     w.chainID,
		Balance:     balance,
		BalanceText: chain.FormatEther(balance),
	}, nil
}

// CallOpts returns options for view calls, from the connected address
// when there is one.
func (w *Wallet) CallOpts(ctx context.Context) *bind.CallOpts {
	opts := &bind.CallOpts{Context: ctx}
	if addr, err := w.Address(); err == nil {
		opts.From = addr
	}
	return opts
}

// TransactOpts returns signing options for the connected key.
func (w *Wallet) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	w.mu.RLock()
	s := w.session
	w.mu.RUnlock()
	if s == nil {
		return nil, ErrNotConnected
	}

	opts, err := bind.NewKeyedTransactorWithChainID(s.key, big.NewInt(w.chainID))
	if err != nil {
		return nil, fmt.Errorf("create transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}

// Submit builds signing options and runs send while holding the
// submission lock, so concurrent callers never race for a nonce.
func (w *Wallet) Submit(ctx context.Context, send func(opts *bind.TransactOpts) (*types.Transaction, error)) (*types.Transaction, error) {
	w.submitMu.Lock()
	defer w.submitMu.Unlock()

	opts, err := w.TransactOpts(ctx)
	if err != nil {
		return nil, err
	}
	return send(opts)
}

// WatchChain polls the node's chain ID until ctx is done. On a mismatch it
// publishes chain_changed and disconnects.
func (w *Wallet) WatchChain(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.CheckChain(ctx)
		}
	}
}

// CheckChain runs one chain check. It returns false when the wallet was
// disconnected because of a mismatch.
func (w *Wallet) CheckChain(ctx context.Context) bool {
	if !w.Connected() {
		return true
	}
	err := w.verifyChain(ctx)
	var mismatch *ChainMismatchError
	if !errors.As(err, &mismatch) {
		if err != nil {
			w.log.Warnf("chain check: %v", err)
		}
		return true
	}

	addr, _ := w.Address()
	w.emit(feed.WalletChainChanged, EventPayload{Address: addr, ChainID: mismatch.Have})
	w.log.Warnf("chain changed to %d, expected %d", mismatch.Have, mismatch.Want)
	w.disconnect(mismatch.Error())
	return false
}

func (w *Wallet) verifyChain(ctx context.Context) error {
	id, err := w.backend.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}
	if !id.IsInt64() || id.Int64() != w.chainID {
		return &ChainMismatchError{Have: id.Int64(), Want: w.chainID}
	}
	return nil
}

func (w *Wallet) emit(t feed.EventType, payload EventPayload) {
	observability.RecordWalletEvent(string(t))
	w.feed.Publish(t, payload)
}
