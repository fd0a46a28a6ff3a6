package contracts

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realestate-token-hub/internal/chain/stub"
)

var (
	factoryAddr = common.HexToAddress("0xf0")
	marketAddr  = common.HexToAddress("0xf1")
	issueAddr   = common.HexToAddress("0xf2")
	tokenAddr   = common.HexToAddress("0xa1")
	daoAddr     = common.HexToAddress("0xd1")
)

func newTestBindings(t *testing.T) (*Bindings, *stub.Backend) {
	t.Helper()
	d, err := NewDeployment(factoryAddr, marketAddr, common.Address{}, issueAddr)
	require.NoError(t, err)
	backend := stub.NewBackend(31337)
	return d.Bind(backend), backend
}

func transactor(t *testing.T) *bind.TransactOpts {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	opts, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(31337))
	require.NoError(t, err)
	opts.Context = context.Background()
	return opts
}

func TestFactory_GetAllProperties(t *testing.T) {
	b, backend := newTestBindings(t)
	backend.Deploy(factoryAddr, b.Deployment().FactoryABI).
		Returns("getAllProperties", []FactoryProperty{
			{TokenAddress: tokenAddr, Name: "Taipei 101"},
			{TokenAddress: common.HexToAddress("0xa2"), Name: "Kaohsiung Loft"},
		}).
		Returns("getDAOByToken", daoAddr)

	props, err := b.Factory.GetAllProperties(nil)
	require.NoError(t, err)
	require.Len(t, props, 2)
	assert.Equal(t, tokenAddr, props[0].TokenAddress)
	assert.Equal(t, "Kaohsiung Loft", props[1].Name)

	dao, err := b.Factory.GetDAOByToken(nil, tokenAddr)
	require.NoError(t, err)
	assert.Equal(t, daoAddr, dao)
}

func TestFactory_CreatePropertyTokenEvent(t *testing.T) {
	b, backend := newTestBindings(t)
	factory := backend.Deploy(factoryAddr, b.Deployment().FactoryABI)
	factory.OnTx("createPropertyToken", func(call stub.Call) ([]*types.Log, error) {
		assert.Equal(t, "Taipei 101", call.Args[2])
		return []*types.Log{factory.Log("PropertyTokenCreated",
			[]common.Hash{common.BytesToHash(tokenAddr.Bytes()), common.BytesToHash(daoAddr.Bytes())},
			"TPE")}, nil
	})

	supply, _ := new(big.Int).SetString("1000000000000000000000", 10)
	tx, err := b.Factory.CreatePropertyToken(transactor(t), "TPE", "TPE", "Taipei 101", supply)
	require.NoError(t, err)

	receipt, err := backend.TransactionReceipt(context.Background(), tx.Hash())
	require.NoError(t, err)

	token, dao, ok := b.Factory.PropertyTokenCreated(receipt)
	require.True(t, ok)
	assert.Equal(t, tokenAddr, token)
	assert.Equal(t, daoAddr, dao)
}

func TestToken_Metadata(t *testing.T) {
	b, backend := newTestBindings(t)
	owner := common.HexToAddress("0xbeef")
	backend.Deploy(tokenAddr, b.Deployment().TokenABI).
		Returns("name", "Taipei Token").
		Returns("symbol", "TPE").
		Returns("decimals", uint8(18)).
		Returns("totalSupply", big.NewInt(5000)).
		Returns("balanceOf", big.NewInt(42)).
		Returns("propertyManager", owner)

	token := b.Token(tokenAddr)

	name, err := token.Name(nil)
	require.NoError(t, err)
	assert.Equal(t, "Taipei Token", name)

	symbol, err := token.Symbol(nil)
	require.NoError(t, err)
	assert.Equal(t, "TPE", symbol)

	decimals, err := token.Decimals(nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(18), decimals)

	supply, err := token.TotalSupply(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), supply.Int64())

	bal, err := token.BalanceOf(nil, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(42), bal.Int64())

	manager, err := token.PropertyManager(nil)
	require.NoError(t, err)
	assert.Equal(t, owner, manager)
}

func TestToken_NoCode(t *testing.T) {
	b, _ := newTestBindings(t)
	_, err := b.Token(common.HexToAddress("0xdead")).Name(nil)
	require.Error(t, err)
}

func TestMarketplace_GetActiveListings(t *testing.T) {
	b, backend := newTestBindings(t)
	seller := common.HexToAddress("0x5e11")
	backend.Deploy(marketAddr, b.Deployment().MarketplaceABI).
		Returns("getActiveListings",
			[]*big.Int{big.NewInt(1), big.NewInt(4)},
			[]common.Address{seller, seller},
			[]common.Address{tokenAddr, tokenAddr},
			[]*big.Int{big.NewInt(100), big.NewInt(200)},
			[]*big.Int{big.NewInt(7), big.NewInt(9)},
		).
		Returns("listings", seller, tokenAddr, big.NewInt(100), big.NewInt(7), true)

	listings, err := b.Marketplace.GetActiveListings(nil)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, int64(4), listings[1].ListingID.Int64())
	assert.Equal(t, int64(200), listings[1].Amount.Int64())
	assert.Equal(t, int64(9), listings[1].PricePerToken.Int64())

	state, err := b.Marketplace.Listing(nil, big.NewInt(1))
	require.NoError(t, err)
	assert.True(t, state.IsActive)
	assert.Equal(t, seller, state.Seller)
}

func TestMarketplace_MismatchedArrays(t *testing.T) {
	b, backend := newTestBindings(t)
	backend.Deploy(marketAddr, b.Deployment().MarketplaceABI).
		Returns("getActiveListings",
			[]*big.Int{big.NewInt(1)},
			[]common.Address{},
			[]common.Address{tokenAddr},
			[]*big.Int{big.NewInt(100)},
			[]*big.Int{big.NewInt(7)},
		)

	_, err := b.Marketplace.GetActiveListings(nil)
	require.Error(t, err)
}

func TestMarketplace_ListingCreatedEvent(t *testing.T) {
	b, backend := newTestBindings(t)
	market := backend.Deploy(marketAddr, b.Deployment().MarketplaceABI)
	market.OnTx("createListing", func(call stub.Call) ([]*types.Log, error) {
		return []*types.Log{market.Log("ListingCreated",
			[]common.Hash{
				common.BigToHash(big.NewInt(12)),
				common.BytesToHash(call.From.Bytes()),
				common.BytesToHash(tokenAddr.Bytes()),
			},
			call.Args[1], call.Args[2])}, nil
	})

	tx, err := b.Marketplace.CreateListing(transactor(t), tokenAddr, big.NewInt(5), big.NewInt(3))
	require.NoError(t, err)
	receipt, err := backend.TransactionReceipt(context.Background(), tx.Hash())
	require.NoError(t, err)

	id, ok := b.Marketplace.ListingCreated(receipt)
	require.True(t, ok)
	assert.Equal(t, int64(12), id.Int64())
}

func TestIssueDAO_GetProposal(t *testing.T) {
	b, backend := newTestBindings(t)
	require.NotNil(t, b.IssueDAO)
	backend.Deploy(issueAddr, b.Deployment().IssueDAOABI).
		Returns("getProposalCount", big.NewInt(1)).
		Returns("getProposal", "Repaint lobby", big.NewInt(10), big.NewInt(2), true, true, false)

	count, err := b.IssueDAO.GetProposalCount(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count.Int64())

	p, err := b.IssueDAO.GetProposal(nil, big.NewInt(0))
	require.NoError(t, err)
	assert.Equal(t, "Repaint lobby", p.Content)
	assert.Equal(t, int64(10), p.VotesFor.Int64())
	assert.True(t, p.Passed)
	assert.False(t, p.Executed)
}

func TestPropertyDAO_Candidates(t *testing.T) {
	b, backend := newTestBindings(t)
	c1 := common.HexToAddress("0xc1")
	backend.Deploy(daoAddr, b.Deployment().PropertyDAOABI).
		Returns("getCandidates", []common.Address{c1}).
		Returns("votes", big.NewInt(300)).
		Returns("manager", c1)

	dao := b.PropertyDAO(daoAddr)
	candidates, err := dao.GetCandidates(nil)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{c1}, candidates)

	votes, err := dao.Votes(nil, c1)
	require.NoError(t, err)
	assert.Equal(t, int64(300), votes.Int64())

	manager, err := dao.Manager(nil)
	require.NoError(t, err)
	assert.Equal(t, c1, manager)
}
