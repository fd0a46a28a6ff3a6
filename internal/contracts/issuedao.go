package contracts

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// IssueProposal is the getProposal(id) record.
type IssueProposal struct {
	Content      string
	VotesFor     *big.Int
	VotesAgainst *big.Int
	Finalized    bool
	Passed       bool
	Executed     bool
}

// IssueDAO binds the public-issue proposal contract.
type IssueDAO struct {
	binding
}

// NewIssueDAO binds the IssueDAO at address.
func NewIssueDAO(address common.Address, parsed abi.ABI, backend bind.ContractBackend) *IssueDAO {
	return &IssueDAO{binding: newBinding(IssueDAOName, address, parsed, backend)}
}

func (d *IssueDAO) CreateProposal(opts *bind.TransactOpts, content string) (*types.Transaction, error) {
	return d.transact(opts, "createProposal", content)
}

func (d *IssueDAO) Vote(opts *bind.TransactOpts, proposalID *big.Int, support bool) (*types.Transaction, error) {
	return d.transact(opts, "vote", proposalID, support)
}

func (d *IssueDAO) FinalizeProposal(opts *bind.TransactOpts, proposalID *big.Int) (*types.Transaction, error) {
	return d.transact(opts, "finalizeProposal", proposalID)
}

func (d *IssueDAO) ExecuteProposal(opts *bind.TransactOpts, proposalID *big.Int) (*types.Transaction, error) {
	return d.transact(opts, "executeProposal", proposalID)
}

func (d *IssueDAO) GetProposalCount(opts *bind.CallOpts) (*big.Int, error) {
	out, err := d.call(opts, "getProposalCount")
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (d *IssueDAO) GetProposal(opts *bind.CallOpts, proposalID *big.Int) (*IssueProposal, error) {
	out, err := d.call(opts, "getProposal", proposalID)
	if err != nil {
		return nil, err
	}
	return &IssueProposal{
		Content:      *abi.ConvertType(out[0], new(string)).(*string),
		VotesFor:     *abi.ConvertType(out[1], new(*big.Int)).(**big.Int),
		VotesAgainst: *abi.ConvertType(out[2], new(*big.Int)).(**big.Int),
		Finalized:    *abi.ConvertType(out[3], new(bool)).(*bool),
		Passed:       *abi.ConvertType(out[4], new(bool)).(*bool),
		Executed:     *abi.ConvertType(out[5], new(bool)).(*bool),
	}, nil
}
