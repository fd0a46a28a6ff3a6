package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Listing is an active sell order on the marketplace contract.
// Amount is in token base units, PricePerToken in wei per whole token.
type Listing struct {
	ListingID     *big.Int       `json:"listingId"`
	Seller        common.Address `json:"seller"`
	TokenAddress  common.Address `json:"tokenAddress"`
	TokenName     string         `json:"tokenName"`
	TokenSymbol   string         `json:"tokenSymbol"`
	Decimals      uint8          `json:"decimals"`
	Amount        *big.Int       `json:"originalAmount"`
	PricePerToken *big.Int       `json:"originalPrice"`

	// Display values.
	AmountText        string `json:"amount"`
	PricePerTokenText string `json:"pricePerToken"` // ETH
	TotalPriceText    string `json:"totalPrice"`    // ETH

	FetchedAt int64 `json:"fetchedAt"` // ms
}

// ListingGroup is the set of listings sharing a token symbol.
type ListingGroup struct {
	Symbol   string     `json:"symbol"`
	Listings []*Listing `json:"listings"`
}
