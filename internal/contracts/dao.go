package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// PropertyDAO binds the per-property manager election contract.
type PropertyDAO struct {
	binding
}

// NewPropertyDAO binds the DAO at address.
func NewPropertyDAO(address common.Address, parsed abi.ABI, backend bind.ContractBackend) *PropertyDAO {
	return &PropertyDAO{binding: newBinding(PropertyDAOName, address, parsed, backend)}
}

// ProposeManager nominates a candidate.
func (d *PropertyDAO) ProposeManager(opts *bind.TransactOpts, candidate common.Address) (*types.Transaction, error) {
	return d.transact(opts, "proposeManager", candidate)
}

// Vote casts the caller's token weight for a candidate.
func (d *PropertyDAO) Vote(opts *bind.TransactOpts, candidate common.Address) (*types.Transaction, error) {
	return d.transact(opts, "vote", candidate)
}

// Finalize closes the election and records the winner as manager.
func (d *PropertyDAO) Finalize(opts *bind.TransactOpts) (*types.Transaction, error) {
	return d.transact(opts, "finalize")
}

func (d *PropertyDAO) GetCandidates(opts *bind.CallOpts) ([]common.Address, error) {
	out, err := d.call(opts, "getCandidates")
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address), nil
}

func (d *PropertyDAO) Votes(opts *bind.CallOpts, candidate common.Address) (*big.Int, error) {
	out, err := d.call(opts, "votes", candidate)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (d *PropertyDAO) Manager(opts *bind.CallOpts) (common.Address, error) {
	out, err := d.call(opts, "manager")
	if err != nil {
		return common.Address{}, err
	}
	return toAddress(out[0]), nil
}
