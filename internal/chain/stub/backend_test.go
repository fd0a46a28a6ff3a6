package stub

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"realestate-token-hub/internal/chain"
)

var _ chain.Backend = (*Backend)(nil)

const counterABI = `[
  {"type":"function","name":"count","stateMutability":"view","inputs":[{"name":"who","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

func TestBackend_CallContract(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(counterABI))
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}

	b := NewBackend(1)
	addr := common.HexToAddress("0x01")
	who := common.HexToAddress("0xaa")

	b.Deploy(addr, parsed).OnCall("count", func(call Call) ([]interface{}, error) {
		if call.Args[0].(common.Address) != who {
			t.Errorf("arg = %v, want %v", call.Args[0], who)
		}
		return []interface{}{big.NewInt(7)}, nil
	})

	input, err := parsed.Pack("count", who)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	out, err := b.CallContract(context.Background(), ethereum.CallMsg{To: &addr, Data: input}, nil)
	if err != nil {
		t.Fatalf("CallContract: %v", err)
	}
	values, err := parsed.Unpack("count", out)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if values[0].(*big.Int).Int64() != 7 {
		t.Fatalf("count = %v, want 7", values[0])
	}
}

func TestBackend_UnknownContract(t *testing.T) {
	b := NewBackend(1)
	addr := common.HexToAddress("0x02")

	if code, _ := b.CodeAt(context.Background(), addr, nil); len(code) != 0 {
		t.Fatalf("expected no code at unknown address")
	}
	if _, err := b.CallContract(context.Background(), ethereum.CallMsg{To: &addr, Data: []byte{1, 2, 3, 4}}, nil); err == nil {
		t.Fatal("expected error for unknown contract")
	}
}

func TestBackend_ChainID(t *testing.T) {
	b := NewBackend(31337)
	id, _ := b.ChainID(context.Background())
	if id.Int64() != 31337 {
		t.Fatalf("chain id = %d", id.Int64())
	}
	b.SetChainID(1)
	id, _ = b.ChainID(context.Background())
	if id.Int64() != 1 {
		t.Fatalf("chain id after switch = %d", id.Int64())
	}
}
