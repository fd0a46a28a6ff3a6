package wallet

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realestate-token-hub/internal/chain/stub"
	"realestate-token-hub/internal/contracts"
	"realestate-token-hub/internal/feed"
)

const testChainID = 31337

func hexKey(t *testing.T) (string, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return hexutil.Encode(crypto.FromECDSA(key)), crypto.PubkeyToAddress(key.PublicKey)
}

func newTestWallet(t *testing.T) (*Wallet, *stub.Backend, *feed.Subscription) {
	t.Helper()
	backend := stub.NewBackend(testChainID)
	bus := feed.New(32)
	t.Cleanup(bus.Close)
	return New(backend, testChainID, bus, nil), backend, bus.Subscribe()
}

func drain(sub *feed.Subscription) []feed.EventType {
	var got []feed.EventType
	for {
		select {
		case ev := <-sub.Events():
			got = append(got, ev.Type)
		default:
			return got
		}
	}
}

func TestConnect_PrivateKey(t *testing.T) {
	ctx := context.Background()
	w, backend, sub := newTestWallet(t)
	key, want := hexKey(t)
	backend.SetBalance(want, big.NewInt(1_500_000_000_000_000_000))

	addr, err := w.Connect(ctx, KeySource{PrivateKey: key})
	require.NoError(t, err)
	assert.Equal(t, want, addr)
	assert.True(t, w.Connected())

	info, err := w.Info(ctx)
	require.NoError(t, err)
	assert.True(t, info.Connected)
	assert.Equal(t, "1.5", info.BalanceText)
	assert.Equal(t, int64(testChainID), info.ChainID)

	assert.Equal(t, want, w.CallOpts(ctx).From)
	assert.Equal(t, []feed.EventType{feed.WalletConnected}, drain(sub))
}

func TestConnect_Keystore(t *testing.T) {
	ctx := context.Background()
	w, _, _ := newTestWallet(t)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	ks := keystore.NewKeyStore(t.TempDir(), keystore.LightScryptN, keystore.LightScryptP)
	account, err := ks.ImportECDSA(key, "correct horse")
	require.NoError(t, err)

	_, err = w.Connect(ctx, KeySource{KeystoreFile: account.URL.Path, Passphrase: "wrong"})
	require.Error(t, err)
	assert.False(t, w.Connected())

	addr, err := w.Connect(ctx, KeySource{KeystoreFile: account.URL.Path, Passphrase: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, account.Address, addr)
}

func TestConnect_Errors(t *testing.T) {
	ctx := context.Background()
	w, backend, _ := newTestWallet(t)

	_, err := w.Connect(ctx, KeySource{})
	assert.ErrorIs(t, err, ErrNoKey)

	_, err = w.Connect(ctx, KeySource{PrivateKey: "0xnothex"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "nothex")

	backend.SetChainID(1)
	key, _ := hexKey(t)
	_, err = w.Connect(ctx, KeySource{PrivateKey: key})
	assert.ErrorIs(t, err, ErrWrongChain)
	var mismatch *ChainMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, int64(1), mismatch.Have)
	assert.Equal(t, int64(testChainID), mismatch.Want)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	w, _, _ := newTestWallet(t)

	ok, err := w.Restore(ctx, KeySource{})
	require.NoError(t, err)
	assert.False(t, ok)

	key, _ := hexKey(t)
	ok, err = w.Restore(ctx, KeySource{PrivateKey: key})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSwitchAccountAndDisconnect(t *testing.T) {
	ctx := context.Background()
	w, _, sub := newTestWallet(t)
	first, _ := hexKey(t)
	second, secondAddr := hexKey(t)

	_, err := w.SwitchAccount(ctx, KeySource{PrivateKey: second})
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = w.Connect(ctx, KeySource{PrivateKey: first})
	require.NoError(t, err)
	addr, err := w.SwitchAccount(ctx, KeySource{PrivateKey: second})
	require.NoError(t, err)
	assert.Equal(t, secondAddr, addr)

	w.Disconnect()
	w.Disconnect()
	assert.False(t, w.Connected())

	_, err = w.TransactOpts(ctx)
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = w.Address()
	assert.ErrorIs(t, err, ErrNotConnected)

	info, err := w.Info(ctx)
	require.NoError(t, err)
	assert.False(t, info.Connected)

	assert.Equal(t, []feed.EventType{feed.WalletConnected, feed.WalletAccountChanged, feed.WalletDisconnected}, drain(sub))
}

func TestCheckChain(t *testing.T) {
	ctx := context.Background()
	w, backend, sub := newTestWallet(t)
	key, _ := hexKey(t)
	_, err := w.Connect(ctx, KeySource{PrivateKey: key})
	require.NoError(t, err)

	assert.True(t, w.CheckChain(ctx))

	backend.ChainIDErr = errors.New("connection refused")
	assert.True(t, w.CheckChain(ctx), "transport errors do not disconnect")
	backend.ChainIDErr = nil

	backend.SetChainID(5)
	assert.False(t, w.CheckChain(ctx))
	assert.False(t, w.Connected())
	assert.Equal(t, []feed.EventType{feed.WalletConnected, feed.WalletChainChanged, feed.WalletDisconnected}, drain(sub))
}

func TestWatchChain_StopsOnCancel(t *testing.T) {
	w, backend, _ := newTestWallet(t)
	key, _ := hexKey(t)
	_, err := w.Connect(context.Background(), KeySource{PrivateKey: key})
	require.NoError(t, err)
	backend.SetChainID(5)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.WatchChain(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return !w.Connected() }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WatchChain did not return after cancel")
	}
}

func TestSubmit_SerializesNonces(t *testing.T) {
	ctx := context.Background()
	w, backend, _ := newTestWallet(t)

	parsed, err := contracts.DefaultABI(contracts.PropertyDAOName)
	require.NoError(t, err)
	daoAddr := common.HexToAddress("0xd0")
	backend.Deploy(daoAddr, parsed).OnTx("finalize", func(stub.Call) ([]*types.Log, error) { return nil, nil })
	dao := contracts.NewPropertyDAO(daoAddr, parsed, backend)

	key, _ := hexKey(t)
	_, err = w.Connect(ctx, KeySource{PrivateKey: key})
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.Submit(ctx, func(opts *bind.TransactOpts) (*types.Transaction, error) {
				return dao.Finalize(opts)
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Len(t, backend.Sent(), n)
}
