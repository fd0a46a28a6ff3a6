package contracts

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"realestate-token-hub/internal/observability"
)

// binding is the shared base of all typed contract bindings.
type binding struct {
	name     string
	address  common.Address
	abi      abi.ABI
	contract *bind.BoundContract
}

func newBinding(name string, address common.Address, parsed abi.ABI, backend bind.ContractBackend) binding {
	return binding{
		name:     name,
		address:  address,
		abi:      parsed,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
	}
}

// Address returns the contract address.
func (b *binding) Address() common.Address {
	return b.address
}

// call invokes a view function and returns its unpacked outputs.
func (b *binding) call(opts *bind.CallOpts, method string, params ...interface{}) ([]interface{}, error) {
	start := time.Now()
	var out []interface{}
	err := b.contract.Call(opts, &out, method, params...)
	observability.RecordContractCall(b.name, method, time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", b.name, method, err)
	}
	if len(out) < len(b.abi.Methods[method].Outputs) {
		return nil, fmt.Errorf("%s.%s: short output (%d values)", b.name, method, len(out))
	}
	return out, nil
}

// transact signs and submits a mutating call. It does not wait for mining.
func (b *binding) transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error) {
	start := time.Now()
	tx, err := b.contract.Transact(opts, method, params...)
	observability.RecordContractCall(b.name, method, time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", b.name, method, err)
	}
	return tx, nil
}

// Bindings holds the singleton contract bindings of a deployment and
// creates per-token and per-DAO bindings on demand.
type Bindings struct {
	deployment *Deployment
	backend    bind.ContractBackend

	Factory     *Factory
	Marketplace *Marketplace
	IssueDAO    *IssueDAO // nil when not deployed
}

// Bind instantiates the deployment's contracts against a backend.
func (d *Deployment) Bind(backend bind.ContractBackend) *Bindings {
	b := &Bindings{
		deployment:  d,
		backend:     backend,
		Factory:     NewFactory(d.Factory, d.FactoryABI, backend),
		Marketplace: NewMarketplace(d.Marketplace, d.MarketplaceABI, backend),
	}
	if d.HasIssueDAO() {
		b.IssueDAO = NewIssueDAO(d.IssueDAO, d.IssueDAOABI, backend)
	}
	return b
}

// Deployment returns the deployment the bindings were created from.
func (b *Bindings) Deployment() *Deployment {
	return b.deployment
}

// Token binds a property token.
func (b *Bindings) Token(address common.Address) *Token {
	return NewToken(address, b.deployment.TokenABI, b.backend)
}

// PropertyDAO binds a per-property DAO.
func (b *Bindings) PropertyDAO(address common.Address) *PropertyDAO {
	return NewPropertyDAO(address, b.deployment.PropertyDAOABI, b.backend)
}

func toAddress(v interface{}) common.Address {
	return *abi.ConvertType(v, new(common.Address)).(*common.Address)
}
