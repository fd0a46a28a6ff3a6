package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Candidate is a nominee in a property manager election.
type Candidate struct {
	Address   common.Address `json:"address"`
	Votes     *big.Int       `json:"votes"`
	VotesText string         `json:"votesText"` // formatted with the token decimals
}

// Election is the election view of a single property token.
type Election struct {
	TokenAddress common.Address `json:"tokenAddress"`
	DAOAddress   common.Address `json:"daoAddress"`
	Manager      common.Address `json:"manager"`    // token propertyManager()
	DAOManager   common.Address `json:"daoManager"` // last finalized winner
	Candidates   []*Candidate   `json:"candidates"`
	FetchedAt    int64          `json:"fetchedAt"` // ms
}

// Proposal is a public-issue proposal of the IssueDAO.
type Proposal struct {
	ID           uint64   `json:"id"`
	Content      string   `json:"content"`
	VotesFor     *big.Int `json:"votesFor"`
	VotesAgainst *big.Int `json:"votesAgainst"`
	Finalized    bool     `json:"finalized"`
	Passed       bool     `json:"passed"`
	Executed     bool     `json:"executed"`
	FetchedAt    int64    `json:"fetchedAt"` // ms
}

// Executable reports whether the proposal may be executed.
func (p *Proposal) Executable() bool {
	return p.Finalized && p.Passed && !p.Executed
}
