package contracts

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestLoadArtifacts(t *testing.T) {
	dir := t.TempDir()
	factory := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	market := common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")

	writeJSON(t, filepath.Join(dir, FactoryArtifactFile), map[string]any{"address": factory.Hex(), "abi": []any{}})
	writeJSON(t, filepath.Join(dir, MarketplaceArtifactFile), map[string]any{"address": market.Hex()})

	d, err := LoadArtifacts(dir)
	if err != nil {
		t.Fatalf("LoadArtifacts: %v", err)
	}
	if d.Factory != factory || d.Marketplace != market {
		t.Fatalf("addresses = %s/%s", d.Factory.Hex(), d.Marketplace.Hex())
	}
	if d.HasIssueDAO() {
		t.Error("IssueDAO should be absent")
	}
	if _, ok := d.FactoryABI.Methods["getAllProperties"]; !ok {
		t.Error("empty factory abi should fall back to the embedded one")
	}
	if _, ok := d.TokenABI.Methods["propertyManager"]; !ok {
		t.Error("missing token abi file should fall back to the embedded one")
	}
	if _, ok := d.IssueDAOABI.Methods["getProposal"]; !ok {
		t.Error("missing IssueDAO artifact should still provide an abi")
	}
}

func TestLoadArtifacts_CustomABI(t *testing.T) {
	dir := t.TempDir()
	custom := json.RawMessage(`[{"type":"function","name":"ping","stateMutability":"view","inputs":[],"outputs":[]}]`)

	writeJSON(t, filepath.Join(dir, FactoryArtifactFile), Artifact{Address: common.HexToAddress("0x01"), ABI: custom})
	writeJSON(t, filepath.Join(dir, MarketplaceArtifactFile), Artifact{Address: common.HexToAddress("0x02")})
	writeJSON(t, filepath.Join(dir, IssueDAOArtifactFile), Artifact{Address: common.HexToAddress("0x03")})

	d, err := LoadArtifacts(dir)
	if err != nil {
		t.Fatalf("LoadArtifacts: %v", err)
	}
	if _, ok := d.FactoryABI.Methods["ping"]; !ok {
		t.Error("custom abi not used")
	}
	if !d.HasIssueDAO() || d.IssueDAO != common.HexToAddress("0x03") {
		t.Errorf("IssueDAO = %s", d.IssueDAO.Hex())
	}
}

func TestLoadArtifacts_MissingRequired(t *testing.T) {
	dir := t.TempDir()
	writeJSON(t, filepath.Join(dir, FactoryArtifactFile), Artifact{Address: common.HexToAddress("0x01")})

	if _, err := LoadArtifacts(dir); err == nil {
		t.Fatal("expected error without marketplace artifact")
	}

	writeJSON(t, filepath.Join(dir, MarketplaceArtifactFile), Artifact{})
	if _, err := LoadArtifacts(dir); !errors.Is(err, ErrMissingAddress) {
		t.Fatalf("error = %v, want ErrMissingAddress", err)
	}
}

func TestNewDeployment(t *testing.T) {
	if _, err := NewDeployment(common.Address{}, common.HexToAddress("0x02"), common.Address{}, common.Address{}); !errors.Is(err, ErrMissingAddress) {
		t.Fatalf("error = %v, want ErrMissingAddress", err)
	}
	d, err := NewDeployment(common.HexToAddress("0x01"), common.HexToAddress("0x02"), common.Address{}, common.HexToAddress("0x04"))
	if err != nil {
		t.Fatalf("NewDeployment: %v", err)
	}
	if !d.HasIssueDAO() {
		t.Error("expected IssueDAO")
	}
}

func TestExportArtifacts(t *testing.T) {
	root := t.TempDir()
	for name, rel := range foundrySources {
		abiJSON, err := DefaultABIJSON(name)
		if err != nil {
			t.Fatalf("DefaultABIJSON: %v", err)
		}
		writeJSON(t, filepath.Join(root, "out", rel), map[string]json.RawMessage{"abi": abiJSON})
	}

	writeJSON(t, BroadcastPath(root, 31337), broadcastLog{Transactions: []broadcastTx{
		{TransactionType: "CREATE", ContractName: FactoryName, ContractAddress: "0x5fbdb2315678afecb367f032d93f642f64180aa3"},
		{TransactionType: "CALL", ContractName: MarketplaceName, ContractAddress: "0x0000000000000000000000000000000000000009"},
		{TransactionType: "CREATE", ContractName: MarketplaceName, ContractAddress: "0xe7f1725e7734ce288f8367e1bb143e90bb3f0512"},
		{TransactionType: "CREATE", ContractName: MarketplaceName, ContractAddress: "0x0000000000000000000000000000000000000008"},
		{TransactionType: "CREATE", ContractName: IssueDAOName, ContractAddress: "0x9fe46736679d2d9a65f0992f2272de9f3c7fa6e0"},
	}})

	outDir := filepath.Join(t.TempDir(), "contracts")
	res, err := ExportArtifacts(root, 31337, outDir)
	if err != nil {
		t.Fatalf("ExportArtifacts: %v", err)
	}
	if res.Marketplace != common.HexToAddress("0xe7f1725e7734ce288f8367e1bb143e90bb3f0512") {
		t.Errorf("marketplace = %s, want first CREATE", res.Marketplace.Hex())
	}
	if res.PropertyDAO != (common.Address{}) {
		t.Errorf("PropertyDAO = %s, want zero", res.PropertyDAO.Hex())
	}
	if len(res.Files) != 4 {
		t.Errorf("files = %v, want 4 (no PropertyDAO artifact)", res.Files)
	}
	if _, err := os.Stat(filepath.Join(outDir, PropertyDAOArtifactFile)); !os.IsNotExist(err) {
		t.Errorf("PropertyDAO artifact should not be written")
	}

	d, err := LoadArtifacts(outDir)
	if err != nil {
		t.Fatalf("LoadArtifacts(export): %v", err)
	}
	if d.Factory != res.Factory || d.IssueDAO != res.IssueDAO {
		t.Errorf("round trip mismatch: %+v", d)
	}
}

func TestExportArtifacts_MissingMarketplace(t *testing.T) {
	root := t.TempDir()
	for _, rel := range foundrySources {
		writeJSON(t, filepath.Join(root, "out", rel), map[string]any{"abi": []any{}})
	}
	writeJSON(t, BroadcastPath(root, 1), broadcastLog{Transactions: []broadcastTx{
		{TransactionType: "CREATE", ContractName: FactoryName, ContractAddress: "0x01"},
	}})

	if _, err := ExportArtifacts(root, 1, t.TempDir()); !errors.Is(err, ErrMissingAddress) {
		t.Fatalf("error = %v, want ErrMissingAddress", err)
	}
}
