package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Holding is a wallet's balance of one property token.
type Holding struct {
	TokenAddress common.Address `json:"tokenAddress"`
	PropertyName string         `json:"propertyName"`
	TokenSymbol  string         `json:"tokenSymbol"`
	Decimals     uint8          `json:"decimals"`
	Balance      *big.Int       `json:"balance"`
	BalanceText  string         `json:"amount"`
	SharePct     float64        `json:"sharePct"` // balance / total supply * 100

	// Value is estimated from the cheapest active listing, in wei.
	// Nil when the token has no active listing.
	Value     *big.Int `json:"value,omitempty"`
	ValueText string   `json:"valueText,omitempty"` // ETH
}
