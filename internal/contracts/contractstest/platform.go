// Package contractstest runs simulated platform contracts on the stub
// backend: a factory that mints tokens with per-token DAOs, an escrowing
// marketplace and an IssueDAO.
package contractstest

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"realestate-token-hub/internal/chain/stub"
	"realestate-token-hub/internal/contracts"
)

// ChainID of the simulated chain.
const ChainID = 31337

// Fixed addresses of the singleton contracts.
var (
	FactoryAddress     = common.HexToAddress("0x00000000000000000000000000000000000fac70")
	MarketplaceAddress = common.HexToAddress("0x000000000000000000000000000000000000a4e7")
	IssueDAOAddress    = common.HexToAddress("0x00000000000000000000000000000000000155de")
)

var one = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// TokenState is the simulated state of one property token.
type TokenState struct {
	Address      common.Address
	DAO          common.Address
	Name         string
	Symbol       string
	PropertyName string
	Supply       *big.Int
	Manager      common.Address
	Balances     map[common.Address]*big.Int
	Allowances   map[[2]common.Address]*big.Int
}

// ListingState is a simulated marketplace listing.
type ListingState struct {
	ID     *big.Int
	Seller common.Address
	Token  common.Address
	Amount *big.Int
	Price  *big.Int
	Active bool
}

// DAOState is a simulated manager election.
type DAOState struct {
	Token      common.Address
	Candidates []common.Address
	Votes      map[common.Address]*big.Int
	Voted      map[common.Address]bool
	Manager    common.Address
}

// ProposalState is a simulated IssueDAO proposal.
type ProposalState struct {
	Content      string
	VotesFor     *big.Int
	VotesAgainst *big.Int
	Voted        map[common.Address]bool
	Finalized    bool
	Passed       bool
	Executed     bool
}

// Platform is the simulated deployment.
type Platform struct {
	Backend    *stub.Backend
	Deployment *contracts.Deployment
	Bindings   *contracts.Bindings

	mu        sync.Mutex
	tokens    map[common.Address]*TokenState
	order     []common.Address
	listings  []*ListingState
	daos      map[common.Address]*DAOState // by DAO address
	proposals []*ProposalState
}

// New deploys the platform. withIssueDAO controls whether the IssueDAO is
// part of the deployment.
func New(withIssueDAO bool) *Platform {
	issue := common.Address{}
	if withIssueDAO {
		issue = IssueDAOAddress
	}
	d, err := contracts.NewDeployment(FactoryAddress, MarketplaceAddress, common.Address{}, issue)
	if err != nil {
		panic(err)
	}

	backend := stub.NewBackend(ChainID)
	p := &Platform{
		Backend:    backend,
		Deployment: d,
		Bindings:   d.Bind(backend),
		tokens:     make(map[common.Address]*TokenState),
		daos:       make(map[common.Address]*DAOState),
	}
	p.deployFactory()
	p.deployMarketplace()
	if withIssueDAO {
		p.deployIssueDAO()
	}
	return p
}

// Mint creates a property token owned by owner, as createPropertyToken
// would, and returns its token and DAO addresses.
func (p *Platform) Mint(owner common.Address, name, symbol, propertyName string, supply *big.Int) (common.Address, common.Address) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mintLocked(owner, name, symbol, propertyName, supply)
}

// Token returns a copy of a token's state.
func (p *Platform) Token(addr common.Address) (TokenState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.tokens[addr]
	if !ok {
		return TokenState{}, false
	}
	return *t, true
}

// Balance returns the token balance of account.
func (p *Platform) Balance(token, account common.Address) *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.tokens[token]; ok {
		return new(big.Int).Set(balance(t, account))
	}
	return new(big.Int)
}

// Listing returns a copy of listing id.
func (p *Platform) Listing(id int64) (ListingState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id < 0 || int(id) >= len(p.listings) {
		return ListingState{}, false
	}
	return *p.listings[id], true
}

// AddListing places a listing directly, escrowing the seller's tokens.
func (p *Platform) AddListing(seller, token common.Address, amount, price *big.Int) *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.tokens[token]
	move(t, seller, MarketplaceAddress, amount)
	return p.addListingLocked(seller, token, amount, price)
}

// DAO returns a copy of the election state of a DAO.
func (p *Platform) DAO(addr common.Address) (DAOState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.daos[addr]
	if !ok {
		return DAOState{}, false
	}
	return *d, true
}

// Proposal returns a copy of IssueDAO proposal id.
func (p *Platform) Proposal(id int) (ProposalState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id < 0 || id >= len(p.proposals) {
		return ProposalState{}, false
	}
	return *p.proposals[id], true
}

// AddProposal creates an IssueDAO proposal directly.
func (p *Platform) AddProposal(content string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.proposals = append(p.proposals, newProposal(content))
	return len(p.proposals) - 1
}

// WholeTokens converts n whole tokens to base units.
func WholeTokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), one)
}

func (p *Platform) mintLocked(owner common.Address, name, symbol, propertyName string, supply *big.Int) (common.Address, common.Address) {
	n := int64(len(p.order) + 1)
	tokenAddr := common.BigToAddress(big.NewInt(0x10000 + n))
	daoAddr := common.BigToAddress(big.NewInt(0x20000 + n))

	t := &TokenState{
		Address:      tokenAddr,
		DAO:          daoAddr,
		Name:         name,
		Symbol:       symbol,
		PropertyName: propertyName,
		Supply:       new(big.Int).Set(supply),
		Manager:      owner,
		Balances:     map[common.Address]*big.Int{owner: new(big.Int).Set(supply)},
		Allowances:   make(map[[2]common.Address]*big.Int),
	}
	p.tokens[tokenAddr] = t
	p.order = append(p.order, tokenAddr)
	p.daos[daoAddr] = &DAOState{
		Token: tokenAddr,
		Votes: make(map[common.Address]*big.Int),
		Voted: make(map[common.Address]bool),
	}

	p.deployToken(t)
	p.deployDAO(daoAddr)
	return tokenAddr, daoAddr
}

func (p *Platform) addListingLocked(seller, token common.Address, amount, price *big.Int) *big.Int {
	id := big.NewInt(int64(len(p.listings)))
	p.listings = append(p.listings, &ListingState{
		ID:     id,
		Seller: seller,
		Token:  token,
		Amount: new(big.Int).Set(amount),
		Price:  new(big.Int).Set(price),
		Active: true,
	})
	return new(big.Int).Set(id)
}

func newProposal(content string) *ProposalState {
	return &ProposalState{
		Content:      content,
		VotesFor:     new(big.Int),
		VotesAgainst: new(big.Int),
		Voted:        make(map[common.Address]bool),
	}
}

func balance(t *TokenState, account common.Address) *big.Int {
	if b, ok := t.Balances[account]; ok {
		return b
	}
	return new(big.Int)
}

func move(t *TokenState, from, to common.Address, amount *big.Int) {
	t.Balances[from] = new(big.Int).Sub(balance(t, from), amount)
	t.Balances[to] = new(big.Int).Add(balance(t, to), amount)
}

func revert(reason string) ([]*types.Log, error) {
	return nil, errors.New(reason)
}
