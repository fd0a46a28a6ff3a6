// Package contracts binds the platform's Solidity contracts (factory, property
// token, marketplace, per-property DAO and IssueDAO) from address+ABI pairs.
package contracts

import (
	"embed"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract names as they appear in the Foundry build output and broadcast logs.
const (
	FactoryName     = "PropertyTokenFactory"
	TokenName       = "MyPropertyToken"
	MarketplaceName = "PropertyMarketplace"
	PropertyDAOName = "PropertyDAO"
	IssueDAOName    = "IssueDAO"
)

//go:embed abi/*.json
var abiFS embed.FS

// DefaultABIJSON returns the embedded ABI of the named contract.
func DefaultABIJSON(name string) ([]byte, error) {
	data, err := abiFS.ReadFile("abi/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("no embedded abi for %s: %w", name, err)
	}
	return data, nil
}

// DefaultABI parses the embedded ABI of the named contract.
func DefaultABI(name string) (abi.ABI, error) {
	data, err := DefaultABIJSON(name)
	if err != nil {
		return abi.ABI{}, err
	}
	return ParseABI(data)
}

// ParseABI parses a JSON ABI array.
func ParseABI(data []byte) (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(string(data)))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse abi: %w", err)
	}
	return parsed, nil
}

func mustDefaultABI(name string) abi.ABI {
	parsed, err := DefaultABI(name)
	if err != nil {
		panic(err)
	}
	return parsed
}
