package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"realestate-token-hub/internal/observability"
)

// Default configuration values.
const (
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 500 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
	DefaultBackoffMult = 2.0
)

// Client is an ethclient whose read calls are retried with exponential
// backoff on transport failures. JSON-RPC errors (including reverts) and
// all transaction submissions go through exactly once.
type Client struct {
	*ethclient.Client

	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	log         *zap.SugaredLogger
}

var _ Backend = (*Client)(nil)

// ClientOption configures Client.
type ClientOption func(*Client)

// WithMaxRetries sets maximum retry attempts for reads.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxDelay = d
	}
}

// WithLogger sets the logger used to report retries.
func WithLogger(log *zap.SugaredLogger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// Dial connects to an HTTP or websocket JSON-RPC endpoint.
func Dial(ctx context.Context, endpoint string, opts ...ClientOption) (*Client, error) {
	rc, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	return NewClient(rc, opts...), nil
}

// NewClient wraps an existing RPC connection.
func NewClient(rc *rpc.Client, opts ...ClientOption) *Client {
	c := &Client{
		Client:      ethclient.NewClient(rc),
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
		log:         zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return retryRead(ctx, c, "eth_chainId", func() (*big.Int, error) {
		return c.Client.ChainID(ctx)
	})
}

func (c *Client) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return retryRead(ctx, c, "eth_getBalance", func() (*big.Int, error) {
		return c.Client.BalanceAt(ctx, account, blockNumber)
	})
}

func (c *Client) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return retryRead(ctx, c, "eth_getCode", func() ([]byte, error) {
		return c.Client.CodeAt(ctx, account, blockNumber)
	})
}

func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return retryRead(ctx, c, "eth_call", func() ([]byte, error) {
		return c.Client.CallContract(ctx, msg, blockNumber)
	})
}

func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return retryRead(ctx, c, "eth_getBlockByNumber", func() (*types.Header, error) {
		return c.Client.HeaderByNumber(ctx, number)
	})
}

func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return retryRead(ctx, c, "eth_getTransactionReceipt", func() (*types.Receipt, error) {
		return c.Client.TransactionReceipt(ctx, txHash)
	})
}

// retryRead runs fn until it succeeds, fails permanently or the retry
// budget is spent.
func retryRead[T any](ctx context.Context, c *Client, method string, fn func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryDelay
	b.MaxInterval = c.maxDelay
	b.Multiplier = c.backoffMult
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries)), ctx)

	return backoff.RetryNotifyWithData(func() (T, error) {
		v, err := fn()
		if err != nil && !isTransient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, policy, func(err error, next time.Duration) {
		observability.RecordRPCRetry(method)
		c.log.Debugf("%s failed, retrying in %s: %v", method, next, err)
	})
}

// isTransient reports whether a read error is worth retrying. Errors the
// node answered with (JSON-RPC errors, reverts, missing receipts) are not.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ethereum.NotFound) {
		return false
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return false
	}
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 429 || httpErr.StatusCode >= 500
	}
	return true
}
