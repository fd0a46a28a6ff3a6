package contracts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// DeployScript is the Foundry script whose broadcast log carries the
// deployed addresses.
const DeployScript = "DeployScript.s.sol"

// foundrySources maps contract names to their Foundry output path under out/.
// The marketplace source file is spelled PropertyMarketPlace.sol.
var foundrySources = map[string]string{
	FactoryName:     "PropertyTokenFactory.sol/PropertyTokenFactory.json",
	TokenName:       "MyPropertyToken.sol/MyPropertyToken.json",
	PropertyDAOName: "PropertyDAO.sol/PropertyDAO.json",
	MarketplaceName: "PropertyMarketPlace.sol/PropertyMarketplace.json",
	IssueDAOName:    "IssueDAO.sol/IssueDAO.json",
}

type foundryOutput struct {
	ABI json.RawMessage `json:"abi"`
}

type broadcastLog struct {
	Transactions []broadcastTx `json:"transactions"`
}

type broadcastTx struct {
	TransactionType string `json:"transactionType"`
	ContractName    string `json:"contractName"`
	ContractAddress string `json:"contractAddress"`
}

// ExportResult lists the addresses found in the broadcast log.
type ExportResult struct {
	Factory     common.Address
	Marketplace common.Address
	PropertyDAO common.Address
	IssueDAO    common.Address
	Files       []string
}

// BroadcastPath returns the run-latest.json path for a chain.
func BroadcastPath(foundryRoot string, chainID uint64) string {
	return filepath.Join(foundryRoot, "broadcast", DeployScript, strconv.FormatUint(chainID, 10), "run-latest.json")
}

// ExportArtifacts reads Foundry build output and the latest broadcast log
// under foundryRoot and writes the contracts directory consumed by
// LoadArtifacts. Factory and marketplace addresses are required.
func ExportArtifacts(foundryRoot string, chainID uint64, outDir string) (*ExportResult, error) {
	abis := make(map[string]json.RawMessage, len(foundrySources))
	for name, rel := range foundrySources {
		path := filepath.Join(foundryRoot, "out", rel)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read build output %s: %w", path, err)
		}
		var out foundryOutput
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("decode build output %s: %w", path, err)
		}
		abis[name] = out.ABI
	}

	path := BroadcastPath(foundryRoot, chainID)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read broadcast %s: %w", path, err)
	}
	var log broadcastLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("decode broadcast %s: %w", path, err)
	}

	res := &ExportResult{
		Factory:     log.createdAddress(FactoryName),
		Marketplace: log.createdAddress(MarketplaceName),
		PropertyDAO: log.createdAddress(PropertyDAOName),
		IssueDAO:    log.createdAddress(IssueDAOName),
	}
	if res.Factory == (common.Address{}) || res.Marketplace == (common.Address{}) {
		return nil, fmt.Errorf("%w: broadcast has no %s or %s CREATE", ErrMissingAddress, FactoryName, MarketplaceName)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	write := func(file string, v any) error {
		body, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", file, err)
		}
		target := filepath.Join(outDir, file)
		if err := os.WriteFile(target, body, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", target, err)
		}
		res.Files = append(res.Files, target)
		return nil
	}

	if err := write(FactoryArtifactFile, Artifact{Address: res.Factory, ABI: abis[FactoryName]}); err != nil {
		return nil, err
	}
	if err := write(TokenABIFile, abis[TokenName]); err != nil {
		return nil, err
	}
	if res.PropertyDAO != (common.Address{}) {
		if err := write(PropertyDAOArtifactFile, Artifact{Address: res.PropertyDAO, ABI: abis[PropertyDAOName]}); err != nil {
			return nil, err
		}
	}
	if res.IssueDAO != (common.Address{}) {
		if err := write(IssueDAOArtifactFile, Artifact{Address: res.IssueDAO, ABI: abis[IssueDAOName]}); err != nil {
			return nil, err
		}
	}
	if err := write(MarketplaceArtifactFile, Artifact{Address: res.Marketplace, ABI: abis[MarketplaceName]}); err != nil {
		return nil, err
	}

	return res, nil
}

// createdAddress returns the address of the first CREATE transaction for name.
func (l *broadcastLog) createdAddress(name string) common.Address {
	for _, tx := range l.Transactions {
		if tx.TransactionType == "CREATE" && tx.ContractName == name && tx.ContractAddress != "" {
			return common.HexToAddress(tx.ContractAddress)
		}
	}
	return common.Address{}
}
