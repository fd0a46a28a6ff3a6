package contracts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Artifact file names in the exported contracts directory.
const (
	FactoryArtifactFile     = FactoryName + ".json"
	MarketplaceArtifactFile = MarketplaceName + ".json"
	PropertyDAOArtifactFile = PropertyDAOName + ".json"
	IssueDAOArtifactFile    = IssueDAOName + ".json"
	TokenABIFile            = TokenName + "-abi.json"
)

var (
	// ErrMissingAddress is returned when a required contract has no deployed address.
	ErrMissingAddress = errors.New("missing required contract address")
)

// Artifact is an exported {address, abi} pair.
type Artifact struct {
	Address common.Address  `json:"address"`
	ABI     json.RawMessage `json:"abi"`
}

// Deployment holds the address+ABI pairs of one deployment. It is immutable
// once loaded.
type Deployment struct {
	Factory     common.Address
	Marketplace common.Address
	PropertyDAO common.Address // zero when not deployed
	IssueDAO    common.Address // zero when not deployed

	FactoryABI     abi.ABI
	TokenABI       abi.ABI
	MarketplaceABI abi.ABI
	PropertyDAOABI abi.ABI
	IssueDAOABI    abi.ABI
}

// NewDeployment builds a deployment from known addresses and the embedded ABIs.
func NewDeployment(factory, marketplace, propertyDAO, issueDAO common.Address) (*Deployment, error) {
	d := &Deployment{
		Factory:        factory,
		Marketplace:    marketplace,
		PropertyDAO:    propertyDAO,
		IssueDAO:       issueDAO,
		FactoryABI:     mustDefaultABI(FactoryName),
		TokenABI:       mustDefaultABI(TokenName),
		MarketplaceABI: mustDefaultABI(MarketplaceName),
		PropertyDAOABI: mustDefaultABI(PropertyDAOName),
		IssueDAOABI:    mustDefaultABI(IssueDAOName),
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// HasIssueDAO reports whether the IssueDAO is part of the deployment.
func (d *Deployment) HasIssueDAO() bool {
	return d.IssueDAO != (common.Address{})
}

func (d *Deployment) validate() error {
	if d.Factory == (common.Address{}) {
		return fmt.Errorf("%w: %s", ErrMissingAddress, FactoryName)
	}
	if d.Marketplace == (common.Address{}) {
		return fmt.Errorf("%w: %s", ErrMissingAddress, MarketplaceName)
	}
	return nil
}

// LoadArtifacts reads an exported contracts directory. Factory and
// marketplace artifacts are required; the DAO artifacts and the token ABI
// are optional. Artifacts without an ABI fall back to the embedded one.
func LoadArtifacts(dir string) (*Deployment, error) {
	d := &Deployment{}
	var err error

	if d.Factory, d.FactoryABI, err = loadArtifact(dir, FactoryArtifactFile, FactoryName, true); err != nil {
		return nil, err
	}
	if d.Marketplace, d.MarketplaceABI, err = loadArtifact(dir, MarketplaceArtifactFile, MarketplaceName, true); err != nil {
		return nil, err
	}
	if d.PropertyDAO, d.PropertyDAOABI, err = loadArtifact(dir, PropertyDAOArtifactFile, PropertyDAOName, false); err != nil {
		return nil, err
	}
	if d.IssueDAO, d.IssueDAOABI, err = loadArtifact(dir, IssueDAOArtifactFile, IssueDAOName, false); err != nil {
		return nil, err
	}

	tokenABI, err := loadABIFile(filepath.Join(dir, TokenABIFile), TokenName)
	if err != nil {
		return nil, err
	}
	d.TokenABI = tokenABI

	if err := d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func loadArtifact(dir, file, name string, required bool) (common.Address, abi.ABI, error) {
	path := filepath.Join(dir, file)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			parsed, err := DefaultABI(name)
			return common.Address{}, parsed, err
		}
		return common.Address{}, abi.ABI{}, fmt.Errorf("read artifact %s: %w", path, err)
	}

	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return common.Address{}, abi.ABI{}, fmt.Errorf("decode artifact %s: %w", path, err)
	}

	parsed, err := abiOrDefault(art.ABI, name)
	if err != nil {
		return common.Address{}, abi.ABI{}, fmt.Errorf("artifact %s: %w", path, err)
	}
	return art.Address, parsed, nil
}

func loadABIFile(path, name string) (abi.ABI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultABI(name)
		}
		return abi.ABI{}, fmt.Errorf("read abi %s: %w", path, err)
	}
	return abiOrDefault(data, name)
}

func abiOrDefault(raw json.RawMessage, name string) (abi.ABI, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("[]")) {
		return DefaultABI(name)
	}
	return ParseABI(trimmed)
}
