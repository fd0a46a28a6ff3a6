package contractstest

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"realestate-token-hub/internal/chain/stub"
	"realestate-token-hub/internal/contracts"
)

func (p *Platform) deployFactory() {
	c := p.Backend.Deploy(FactoryAddress, p.Deployment.FactoryABI)

	c.OnCall("getAllProperties", func(stub.Call) ([]interface{}, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		out := make([]contracts.FactoryProperty, 0, len(p.order))
		for _, addr := range p.order {
			out = append(out, contracts.FactoryProperty{TokenAddress: addr, Name: p.tokens[addr].PropertyName})
		}
		return []interface{}{out}, nil
	})
	c.OnCall("getDAOByToken", func(call stub.Call) ([]interface{}, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if t, ok := p.tokens[call.Args[0].(common.Address)]; ok {
			return []interface{}{t.DAO}, nil
		}
		return []interface{}{common.Address{}}, nil
	})
	c.OnTx("createPropertyToken", func(call stub.Call) ([]*types.Log, error) {
		name := call.Args[0].(string)
		symbol := call.Args[1].(string)
		propertyName := call.Args[2].(string)
		supply := call.Args[3].(*big.Int)

		p.mu.Lock()
		token, dao := p.mintLocked(call.From, name, symbol, propertyName, supply)
		p.mu.Unlock()

		return []*types.Log{c.Log("PropertyTokenCreated",
			[]common.Hash{common.BytesToHash(token.Bytes()), common.BytesToHash(dao.Bytes())},
			name)}, nil
	})
}

func (p *Platform) deployToken(t *TokenState) {
	c := p.Backend.Deploy(t.Address, p.Deployment.TokenABI)

	c.Returns("name", t.Name).
		Returns("symbol", t.Symbol).
		Returns("decimals", uint8(18)).
		Returns("totalSupply", new(big.Int).Set(t.Supply))

	c.OnCall("propertyManager", func(stub.Call) ([]interface{}, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		return []interface{}{t.Manager}, nil
	})

	c.OnCall("balanceOf", func(call stub.Call) ([]interface{}, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		return []interface{}{new(big.Int).Set(balance(t, call.Args[0].(common.Address)))}, nil
	})
	c.OnCall("allowance", func(call stub.Call) ([]interface{}, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		key := [2]common.Address{call.Args[0].(common.Address), call.Args[1].(common.Address)}
		if a, ok := t.Allowances[key]; ok {
			return []interface{}{new(big.Int).Set(a)}, nil
		}
		return []interface{}{new(big.Int)}, nil
	})
	c.OnTx("approve", func(call stub.Call) ([]*types.Log, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		key := [2]common.Address{call.From, call.Args[0].(common.Address)}
		t.Allowances[key] = new(big.Int).Set(call.Args[1].(*big.Int))
		return nil, nil
	})
	c.OnTx("transfer", func(call stub.Call) ([]*types.Log, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		amount := call.Args[1].(*big.Int)
		if balance(t, call.From).Cmp(amount) < 0 {
			return revert("ERC20: transfer amount exceeds balance")
		}
		move(t, call.From, call.Args[0].(common.Address), amount)
		return nil, nil
	})
	c.OnTx("setPropertyManager", func(call stub.Call) ([]*types.Log, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if call.From != t.Manager {
			return revert("Only property manager")
		}
		t.Manager = call.Args[0].(common.Address)
		return nil, nil
	})
}

func (p *Platform) deployMarketplace() {
	c := p.Backend.Deploy(MarketplaceAddress, p.Deployment.MarketplaceABI)

	c.OnCall("getActiveListings", func(stub.Call) ([]interface{}, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		var (
			ids     []*big.Int
			sellers []common.Address
			tokens  []common.Address
			amounts []*big.Int
			prices  []*big.Int
		)
		for _, l := range p.listings {
			if !l.Active {
				continue
			}
			ids = append(ids, new(big.Int).Set(l.ID))
			sellers = append(sellers, l.Seller)
			tokens = append(tokens, l.Token)
			amounts = append(amounts, new(big.Int).Set(l.Amount))
			prices = append(prices, new(big.Int).Set(l.Price))
		}
		return []interface{}{ids, sellers, tokens, amounts, prices}, nil
	})
	c.OnCall("listings", func(call stub.Call) ([]interface{}, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		l, err := p.listingLocked(call.Args[0].(*big.Int))
		if err != nil {
			return []interface{}{common.Address{}, common.Address{}, new(big.Int), new(big.Int), false}, nil
		}
		return []interface{}{l.Seller, l.Token, new(big.Int).Set(l.Amount), new(big.Int).Set(l.Price), l.Active}, nil
	})

	c.OnTx("createListing", func(call stub.Call) ([]*types.Log, error) {
		tokenAddr := call.Args[0].(common.Address)
		amount := call.Args[1].(*big.Int)
		price := call.Args[2].(*big.Int)

		p.mu.Lock()
		t, ok := p.tokens[tokenAddr]
		if !ok {
			p.mu.Unlock()
			return revert("Unknown token")
		}
		if amount.Sign() <= 0 || price.Sign() <= 0 {
			p.mu.Unlock()
			return revert("Invalid amount or price")
		}
		key := [2]common.Address{call.From, MarketplaceAddress}
		allowance, ok := t.Allowances[key]
		if !ok || allowance.Cmp(amount) < 0 {
			p.mu.Unlock()
			return revert("ERC20: insufficient allowance")
		}
		if balance(t, call.From).Cmp(amount) < 0 {
			p.mu.Unlock()
			return revert("ERC20: transfer amount exceeds balance")
		}
		t.Allowances[key] = new(big.Int).Sub(allowance, amount)
		move(t, call.From, MarketplaceAddress, amount)
		id := p.addListingLocked(call.From, tokenAddr, amount, price)
		p.mu.Unlock()

		return []*types.Log{c.Log("ListingCreated",
			[]common.Hash{
				common.BigToHash(id),
				common.BytesToHash(call.From.Bytes()),
				common.BytesToHash(tokenAddr.Bytes()),
			},
			amount, price)}, nil
	})
	c.OnTx("purchaseTokens", func(call stub.Call) ([]*types.Log, error) {
		id := call.Args[0].(*big.Int)
		amount := call.Args[1].(*big.Int)

		p.mu.Lock()
		defer p.mu.Unlock()
		l, err := p.listingLocked(id)
		if err != nil || !l.Active {
			return revert("Listing not active")
		}
		if call.From == l.Seller {
			return revert("Cannot buy own listing")
		}
		if amount.Sign() <= 0 || amount.Cmp(l.Amount) > 0 {
			return revert("Not enough tokens")
		}
		total := new(big.Int).Div(new(big.Int).Mul(amount, l.Price), one)
		if call.Value == nil || call.Value.Cmp(total) < 0 {
			return revert("Insufficient payment")
		}
		move(p.tokens[l.Token], MarketplaceAddress, call.From, amount)
		l.Amount = new(big.Int).Sub(l.Amount, amount)
		if l.Amount.Sign() == 0 {
			l.Active = false
		}
		return []*types.Log{c.Log("TokensPurchased",
			[]common.Hash{common.BigToHash(id), common.BytesToHash(call.From.Bytes())},
			amount, total)}, nil
	})
	c.OnTx("cancelListing", func(call stub.Call) ([]*types.Log, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		l, err := p.listingLocked(call.Args[0].(*big.Int))
		if err != nil || !l.Active {
			return revert("Listing not active")
		}
		if call.From != l.Seller {
			return revert("Not seller")
		}
		move(p.tokens[l.Token], MarketplaceAddress, l.Seller, l.Amount)
		l.Active = false
		return nil, nil
	})
}

func (p *Platform) listingLocked(id *big.Int) (*ListingState, error) {
	if !id.IsInt64() || id.Sign() < 0 || id.Int64() >= int64(len(p.listings)) {
		return nil, errors.New("no such listing")
	}
	return p.listings[id.Int64()], nil
}

func (p *Platform) deployDAO(addr common.Address) {
	c := p.Backend.Deploy(addr, p.Deployment.PropertyDAOABI)
	dao := p.daos[addr]

	c.OnCall("getCandidates", func(stub.Call) ([]interface{}, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		out := make([]common.Address, len(dao.Candidates))
		copy(out, dao.Candidates)
		return []interface{}{out}, nil
	})
	c.OnCall("votes", func(call stub.Call) ([]interface{}, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if v, ok := dao.Votes[call.Args[0].(common.Address)]; ok {
			return []interface{}{new(big.Int).Set(v)}, nil
		}
		return []interface{}{new(big.Int)}, nil
	})
	c.OnCall("manager", func(stub.Call) ([]interface{}, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		return []interface{}{dao.Manager}, nil
	})

	c.OnTx("proposeManager", func(call stub.Call) ([]*types.Log, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		candidate := call.Args[0].(common.Address)
		if _, ok := dao.Votes[candidate]; ok {
			return revert("Already a candidate")
		}
		dao.Candidates = append(dao.Candidates, candidate)
		dao.Votes[candidate] = new(big.Int)
		return nil, nil
	})
	c.OnTx("vote", func(call stub.Call) ([]*types.Log, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		candidate := call.Args[0].(common.Address)
		v, ok := dao.Votes[candidate]
		if !ok {
			return revert("Not a candidate")
		}
		if dao.Voted[call.From] {
			return revert("Already voted")
		}
		weight := balance(p.tokens[dao.Token], call.From)
		if weight.Sign() == 0 {
			return revert("No voting power")
		}
		dao.Votes[candidate] = new(big.Int).Add(v, weight)
		dao.Voted[call.From] = true
		return nil, nil
	})
	c.OnTx("finalize", func(call stub.Call) ([]*types.Log, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		if len(dao.Candidates) == 0 {
			return revert("No candidates")
		}
		winner := dao.Candidates[0]
		for _, cand := range dao.Candidates[1:] {
			if dao.Votes[cand].Cmp(dao.Votes[winner]) > 0 {
				winner = cand
			}
		}
		dao.Manager = winner
		return nil, nil
	})
}

func (p *Platform) deployIssueDAO() {
	c := p.Backend.Deploy(IssueDAOAddress, p.Deployment.IssueDAOABI)

	c.OnCall("getProposalCount", func(stub.Call) ([]interface{}, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		return []interface{}{big.NewInt(int64(len(p.proposals)))}, nil
	})
	c.OnCall("getProposal", func(call stub.Call) ([]interface{}, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		pr, err := p.proposalLocked(call.Args[0].(*big.Int))
		if err != nil {
			return nil, err
		}
		return []interface{}{
			pr.Content,
			new(big.Int).Set(pr.VotesFor),
			new(big.Int).Set(pr.VotesAgainst),
			pr.Finalized, pr.Passed, pr.Executed,
		}, nil
	})

	c.OnTx("createProposal", func(call stub.Call) ([]*types.Log, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.proposals = append(p.proposals, newProposal(call.Args[0].(string)))
		return nil, nil
	})
	c.OnTx("vote", func(call stub.Call) ([]*types.Log, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		pr, err := p.proposalLocked(call.Args[0].(*big.Int))
		if err != nil {
			return nil, err
		}
		if pr.Finalized {
			return revert("Proposal finalized")
		}
		if pr.Voted[call.From] {
			return revert("Already voted")
		}
		pr.Voted[call.From] = true
		if call.Args[1].(bool) {
			pr.VotesFor = new(big.Int).Add(pr.VotesFor, common.Big1)
		} else {
			pr.VotesAgainst = new(big.Int).Add(pr.VotesAgainst, common.Big1)
		}
		return nil, nil
	})
	c.OnTx("finalizeProposal", func(call stub.Call) ([]*types.Log, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		pr, err := p.proposalLocked(call.Args[0].(*big.Int))
		if err != nil {
			return nil, err
		}
		if pr.Finalized {
			return revert("Already finalized")
		}
		pr.Finalized = true
		pr.Passed = pr.VotesFor.Cmp(pr.VotesAgainst) > 0
		return nil, nil
	})
	c.OnTx("executeProposal", func(call stub.Call) ([]*types.Log, error) {
		p.mu.Lock()
		defer p.mu.Unlock()
		pr, err := p.proposalLocked(call.Args[0].(*big.Int))
		if err != nil {
			return nil, err
		}
		if !pr.Finalized || !pr.Passed || pr.Executed {
			return revert("Cannot execute")
		}
		pr.Executed = true
		return nil, nil
	})
}

func (p *Platform) proposalLocked(id *big.Int) (*ProposalState, error) {
	if !id.IsInt64() || id.Sign() < 0 || id.Int64() >= int64(len(p.proposals)) {
		return nil, errors.New("Invalid proposal")
	}
	return p.proposals[id.Int64()], nil
}
