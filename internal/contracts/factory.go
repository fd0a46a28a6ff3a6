package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// FactoryProperty is an entry of getAllProperties.
type FactoryProperty struct {
	TokenAddress common.Address
	Name         string
}

// Factory binds PropertyTokenFactory.
type Factory struct {
	binding
}

// NewFactory binds the factory at address.
func NewFactory(address common.Address, parsed abi.ABI, backend bind.ContractBackend) *Factory {
	return &Factory{binding: newBinding(FactoryName, address, parsed, backend)}
}

// CreatePropertyToken deploys a new property token with its DAO.
// initialSupply is in token base units.
func (f *Factory) CreatePropertyToken(opts *bind.TransactOpts, name, symbol, propertyName string, initialSupply *big.Int) (*types.Transaction, error) {
	return f.transact(opts, "createPropertyToken", name, symbol, propertyName, initialSupply)
}

// GetAllProperties returns every property registered with the factory.
func (f *Factory) GetAllProperties(opts *bind.CallOpts) ([]FactoryProperty, error) {
	out, err := f.call(opts, "getAllProperties")
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]FactoryProperty)).(*[]FactoryProperty), nil
}

// GetDAOByToken returns the DAO address registered for a token, or the
// zero address when there is none.
func (f *Factory) GetDAOByToken(opts *bind.CallOpts, token common.Address) (common.Address, error) {
	out, err := f.call(opts, "getDAOByToken", token)
	if err != nil {
		return common.Address{}, err
	}
	return toAddress(out[0]), nil
}

// PropertyTokenCreated finds the PropertyTokenCreated event in a receipt.
func (f *Factory) PropertyTokenCreated(receipt *types.Receipt) (token, dao common.Address, ok bool) {
	event, exists := f.abi.Events["PropertyTokenCreated"]
	if !exists || receipt == nil {
		return common.Address{}, common.Address{}, false
	}
	for _, l := range receipt.Logs {
		if l.Address != f.address || len(l.Topics) < 3 || l.Topics[0] != event.ID {
			continue
		}
		return common.BytesToAddress(l.Topics[1].Bytes()), common.BytesToAddress(l.Topics[2].Bytes()), true
	}
	return common.Address{}, common.Address{}, false
}
