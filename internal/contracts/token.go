package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Token binds a MyPropertyToken (ERC20 with a property manager).
type Token struct {
	binding
}

// NewToken binds the token at address.
func NewToken(address common.Address, parsed abi.ABI, backend bind.ContractBackend) *Token {
	return &Token{binding: newBinding(TokenName, address, parsed, backend)}
}

func (t *Token) Name(opts *bind.CallOpts) (string, error) {
	out, err := t.call(opts, "name")
	if err != nil {
		return "", err
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

func (t *Token) Symbol(opts *bind.CallOpts) (string, error) {
	out, err := t.call(opts, "symbol")
	if err != nil {
		return "", err
	}
	return *abi.ConvertType(out[0], new(string)).(*string), nil
}

func (t *Token) Decimals(opts *bind.CallOpts) (uint8, error) {
	out, err := t.call(opts, "decimals")
	if err != nil {
		return 0, err
	}
	return *abi.ConvertType(out[0], new(uint8)).(*uint8), nil
}

func (t *Token) TotalSupply(opts *bind.CallOpts) (*big.Int, error) {
	return t.callBig(opts, "totalSupply")
}

func (t *Token) BalanceOf(opts *bind.CallOpts, account common.Address) (*big.Int, error) {
	return t.callBig(opts, "balanceOf", account)
}

func (t *Token) Allowance(opts *bind.CallOpts, owner, spender common.Address) (*big.Int, error) {
	return t.callBig(opts, "allowance", owner, spender)
}

func (t *Token) Approve(opts *bind.TransactOpts, spender common.Address, value *big.Int) (*types.Transaction, error) {
	return t.transact(opts, "approve", spender, value)
}

// PropertyManager returns the address currently managing the property.
func (t *Token) PropertyManager(opts *bind.CallOpts) (common.Address, error) {
	out, err := t.call(opts, "propertyManager")
	if err != nil {
		return common.Address{}, err
	}
	return toAddress(out[0]), nil
}

// SetPropertyManager hands the property over to a new manager.
func (t *Token) SetPropertyManager(opts *bind.TransactOpts, manager common.Address) (*types.Transaction, error) {
	return t.transact(opts, "setPropertyManager", manager)
}

func (t *Token) callBig(opts *bind.CallOpts, method string, params ...interface{}) (*big.Int, error) {
	out, err := t.call(opts, method, params...)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}
