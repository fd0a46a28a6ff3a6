// Package stub provides an in-process chain.Backend for tests. Contract
// calls and transactions are ABI-decoded and dispatched to Go handlers.
package stub

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrNoHandler is returned when a called method has no registered handler.
var ErrNoHandler = errors.New("no handler")

// Call is a decoded contract invocation.
type Call struct {
	From  common.Address
	Value *big.Int
	Args  []interface{}
}

// CallHandler answers a view call with the method's output values.
type CallHandler func(call Call) ([]interface{}, error)

// TxHandler executes a transaction. A returned error produces a failed
// receipt, like a revert.
type TxHandler func(call Call) ([]*types.Log, error)

// Contract is a fake contract registered on a Backend.
type Contract struct {
	Address common.Address
	ABI     abi.ABI

	calls map[string]CallHandler
	txs   map[string]TxHandler
}

// OnCall registers a view handler.
func (c *Contract) OnCall(method string, h CallHandler) *Contract {
	c.calls[method] = h
	return c
}

// OnTx registers a transaction handler.
func (c *Contract) OnTx(method string, h TxHandler) *Contract {
	c.txs[method] = h
	return c
}

// Returns registers a view handler that always answers with values.
func (c *Contract) Returns(method string, values ...interface{}) *Contract {
	return c.OnCall(method, func(Call) ([]interface{}, error) {
		return values, nil
	})
}

// Log builds an event log emitted by the contract. Indexed values are
// passed as topics; data holds the non-indexed arguments in order.
func (c *Contract) Log(event string, topics []common.Hash, data ...interface{}) *types.Log {
	ev, ok := c.ABI.Events[event]
	if !ok {
		panic(fmt.Sprintf("stub: unknown event %s", event))
	}
	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		panic(fmt.Sprintf("stub: pack %s: %v", event, err))
	}
	return &types.Log{
		Address: c.Address,
		Topics:  append([]common.Hash{ev.ID}, topics...),
		Data:    packed,
	}
}

// Backend implements chain.Backend in memory.
type Backend struct {
	mu        sync.Mutex
	chainID   *big.Int
	block     uint64
	contracts map[common.Address]*Contract
	receipts  map[common.Hash]*types.Receipt
	nonces    map[common.Address]uint64
	balances  map[common.Address]*big.Int
	sent      []*types.Transaction

	// ChainIDErr, when set, is returned by ChainID.
	ChainIDErr error
}

// NewBackend creates a backend reporting chainID.
func NewBackend(chainID int64) *Backend {
	return &Backend{
		chainID:   big.NewInt(chainID),
		contracts: make(map[common.Address]*Contract),
		receipts:  make(map[common.Hash]*types.Receipt),
		nonces:    make(map[common.Address]uint64),
		balances:  make(map[common.Address]*big.Int),
	}
}

// Deploy registers a fake contract at address.
func (b *Backend) Deploy(address common.Address, parsed abi.ABI) *Contract {
	c := &Contract{
		Address: address,
		ABI:     parsed,
		calls:   make(map[string]CallHandler),
		txs:     make(map[string]TxHandler),
	}
	b.mu.Lock()
	b.contracts[address] = c
	b.mu.Unlock()
	return c
}

// SetChainID changes the reported chain ID.
func (b *Backend) SetChainID(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chainID = big.NewInt(id)
}

// SetBalance sets an account's ether balance.
func (b *Backend) SetBalance(account common.Address, wei *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[account] = new(big.Int).Set(wei)
}

// Sent returns the submitted transactions in order.
func (b *Backend) Sent() []*types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*types.Transaction, len(b.sent))
	copy(out, b.sent)
	return out
}

// SentMethods returns the method names of submitted transactions in order.
func (b *Backend) SentMethods() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.sent))
	for _, tx := range b.sent {
		name := "?"
		if c, ok := b.contracts[*tx.To()]; ok && len(tx.Data()) >= 4 {
			if m, err := c.ABI.MethodById(tx.Data()[:4]); err == nil {
				name = m.Name
			}
		}
		out = append(out, name)
	}
	return out
}

func (b *Backend) ChainID(_ context.Context) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ChainIDErr != nil {
		return nil, b.ChainIDErr
	}
	return new(big.Int).Set(b.chainID), nil
}

func (b *Backend) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bal, ok := b.balances[account]; ok {
		return new(big.Int).Set(bal), nil
	}
	return new(big.Int), nil
}

func (b *Backend) CodeAt(_ context.Context, contract common.Address, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.contracts[contract]; ok {
		return []byte{0x60, 0x80, 0x60, 0x40}, nil
	}
	return nil, nil
}

func (b *Backend) PendingCodeAt(ctx context.Context, contract common.Address) ([]byte, error) {
	return b.CodeAt(ctx, contract, nil)
}

func (b *Backend) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	c, method, args, err := b.decode(msg.To, msg.Data)
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}

	h, ok := c.calls[method.Name]
	if !ok {
		return nil, fmt.Errorf("%w for %s", ErrNoHandler, method.Name)
	}
	out, err := h(Call{From: msg.From, Value: msg.Value, Args: args})
	if err != nil {
		return nil, err
	}
	return method.Outputs.Pack(out...)
}

func (b *Backend) HeaderByNumber(_ context.Context, _ *big.Int) (*types.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &types.Header{Number: new(big.Int).SetUint64(b.block)}, nil
}

func (b *Backend) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonces[account], nil
}

func (b *Backend) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *Backend) SuggestGasTipCap(_ context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *Backend) EstimateGas(_ context.Context, _ ethereum.CallMsg) (uint64, error) {
	return 200_000, nil
}

// SendTransaction executes the transaction handler immediately and stores
// a receipt.
func (b *Backend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	from, err := types.Sender(types.LatestSignerForChainID(b.chainID), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if tx.Nonce() != b.nonces[from] {
		return fmt.Errorf("nonce mismatch: have %d, want %d", tx.Nonce(), b.nonces[from])
	}

	c, method, args, err := b.decode(tx.To(), tx.Data())
	if err != nil {
		return err
	}
	h, ok := c.txs[method.Name]
	if !ok {
		return fmt.Errorf("%w for %s", ErrNoHandler, method.Name)
	}

	b.nonces[from]++
	b.block++
	b.sent = append(b.sent, tx)

	receipt := &types.Receipt{
		Type:        tx.Type(),
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      tx.Hash(),
		GasUsed:     tx.Gas(),
		BlockNumber: new(big.Int).SetUint64(b.block),
	}

	// Handlers run without the lock so they may read backend state.
	b.mu.Unlock()
	logs, execErr := h(Call{From: from, Value: tx.Value(), Args: args})
	b.mu.Lock()

	if execErr != nil {
		receipt.Status = types.ReceiptStatusFailed
	} else {
		for i, l := range logs {
			l.TxHash = tx.Hash()
			l.BlockNumber = b.block
			l.Index = uint(i)
			if l.Address == (common.Address{}) {
				l.Address = c.Address
			}
		}
		receipt.Logs = logs
	}
	b.receipts[tx.Hash()] = receipt
	return nil
}

func (b *Backend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.receipts[hash]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (b *Backend) FilterLogs(_ context.Context, _ ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (b *Backend) SubscribeFilterLogs(_ context.Context, _ ethereum.FilterQuery, _ chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("stub: subscriptions not supported")
}

// decode resolves the target contract and method. Callers hold b.mu.
func (b *Backend) decode(to *common.Address, data []byte) (*Contract, *abi.Method, []interface{}, error) {
	if to == nil {
		return nil, nil, nil, errors.New("stub: contract creation not supported")
	}
	c, ok := b.contracts[*to]
	if !ok {
		return nil, nil, nil, fmt.Errorf("stub: no contract at %s", to.Hex())
	}
	if len(data) < 4 {
		return nil, nil, nil, errors.New("stub: missing method selector")
	}
	method, err := c.ABI.MethodById(data[:4])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("stub: %w", err)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("stub: unpack %s: %w", method.Name, err)
	}
	return c, method, args, nil
}
