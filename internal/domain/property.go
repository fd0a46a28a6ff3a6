package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Property is a property token as registered by the factory, enriched with
// its ERC20 metadata.
type Property struct {
	TokenAddress    common.Address `json:"tokenAddress"`
	PropertyName    string         `json:"propertyName"`
	TokenName       string         `json:"tokenName"`
	TokenSymbol     string         `json:"tokenSymbol"`
	Decimals        uint8          `json:"decimals"`
	TotalSupply     *big.Int       `json:"totalSupply"`
	TotalSupplyText string         `json:"initialSupply"` // formatted with Decimals
	DAOAddress      common.Address `json:"daoAddress"`    // zero when the factory has none
	Manager         common.Address `json:"manager"`       // token propertyManager()
	FetchedAt       int64          `json:"fetchedAt"`     // ms
}

// TokenInfo is the ERC20 metadata needed to render amounts of a token.
type TokenInfo struct {
	Address  common.Address `json:"address"`
	Name     string         `json:"name"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}
