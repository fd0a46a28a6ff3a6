package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ActiveListing is one row of getActiveListings.
type ActiveListing struct {
	ListingID     *big.Int
	Seller        common.Address
	TokenAddress  common.Address
	Amount        *big.Int
	PricePerToken *big.Int
}

// ListingState is the raw listings(id) record.
type ListingState struct {
	Seller        common.Address
	TokenAddress  common.Address
	Amount        *big.Int
	PricePerToken *big.Int
	IsActive      bool
}

// Marketplace binds PropertyMarketplace.
type Marketplace struct {
	binding
}

// NewMarketplace binds the marketplace at address.
func NewMarketplace(address common.Address, parsed abi.ABI, backend bind.ContractBackend) *Marketplace {
	return &Marketplace{binding: newBinding(MarketplaceName, address, parsed, backend)}
}

// CreateListing offers amount token base units at pricePerToken wei per
// whole token. The marketplace must hold an allowance for amount.
func (m *Marketplace) CreateListing(opts *bind.TransactOpts, token common.Address, amount, pricePerToken *big.Int) (*types.Transaction, error) {
	return m.transact(opts, "createListing", token, amount, pricePerToken)
}

// PurchaseTokens buys amount from a listing; opts.Value must carry the price.
func (m *Marketplace) PurchaseTokens(opts *bind.TransactOpts, listingID, amount *big.Int) (*types.Transaction, error) {
	return m.transact(opts, "purchaseTokens", listingID, amount)
}

// CancelListing withdraws a listing. Only its seller may cancel.
func (m *Marketplace) CancelListing(opts *bind.TransactOpts, listingID *big.Int) (*types.Transaction, error) {
	return m.transact(opts, "cancelListing", listingID)
}

// GetActiveListings zips the five parallel arrays returned by the contract.
func (m *Marketplace) GetActiveListings(opts *bind.CallOpts) ([]ActiveListing, error) {
	out, err := m.call(opts, "getActiveListings")
	if err != nil {
		return nil, err
	}

	ids := *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int)
	sellers := *abi.ConvertType(out[1], new([]common.Address)).(*[]common.Address)
	tokens := *abi.ConvertType(out[2], new([]common.Address)).(*[]common.Address)
	amounts := *abi.ConvertType(out[3], new([]*big.Int)).(*[]*big.Int)
	prices := *abi.ConvertType(out[4], new([]*big.Int)).(*[]*big.Int)

	n := len(ids)
	if len(sellers) != n || len(tokens) != n || len(amounts) != n || len(prices) != n {
		return nil, fmt.Errorf("%s.getActiveListings: mismatched array lengths", m.name)
	}

	listings := make([]ActiveListing, n)
	for i := range ids {
		listings[i] = ActiveListing{
			ListingID:     ids[i],
			Seller:        sellers[i],
			TokenAddress:  tokens[i],
			Amount:        amounts[i],
			PricePerToken: prices[i],
		}
	}
	return listings, nil
}

// Listing reads the raw state of a listing.
func (m *Marketplace) Listing(opts *bind.CallOpts, listingID *big.Int) (*ListingState, error) {
	out, err := m.call(opts, "listings", listingID)
	if err != nil {
		return nil, err
	}
	return &ListingState{
		Seller:        toAddress(out[0]),
		TokenAddress:  toAddress(out[1]),
		Amount:        *abi.ConvertType(out[2], new(*big.Int)).(**big.Int),
		PricePerToken: *abi.ConvertType(out[3], new(*big.Int)).(**big.Int),
		IsActive:      *abi.ConvertType(out[4], new(bool)).(*bool),
	}, nil
}

// ListingCreated finds the ListingCreated event in a receipt and returns
// the new listing ID.
func (m *Marketplace) ListingCreated(receipt *types.Receipt) (*big.Int, bool) {
	event, exists := m.abi.Events["ListingCreated"]
	if !exists || receipt == nil {
		return nil, false
	}
	for _, l := range receipt.Logs {
		if l.Address != m.address || len(l.Topics) < 2 || l.Topics[0] != event.ID {
			continue
		}
		return new(big.Int).SetBytes(l.Topics[1].Bytes()), true
	}
	return nil, false
}
