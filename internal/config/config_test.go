package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RPCEndpoint != "http://127.0.0.1:8545" {
		t.Errorf("RPCEndpoint = %q", cfg.RPCEndpoint)
	}
	if cfg.ChainID != 31337 {
		t.Errorf("ChainID = %d", cfg.ChainID)
	}
	if cfg.RefreshInterval != 30*time.Second {
		t.Errorf("RefreshInterval = %v", cfg.RefreshInterval)
	}
	if !cfg.UseMemory {
		t.Error("UseMemory should default to true")
	}
	if cfg.HTTPAddr != "127.0.0.1:8080" {
		t.Errorf("HTTPAddr = %q, want loopback default", cfg.HTTPAddr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "estate.yaml")
	yamlData := "rpc_endpoint: http://file:8545\nchain_id: 11155111\nrefresh_interval: 1m\nhttp_addr: \":9000\"\n"
	if err := os.WriteFile(path, []byte(yamlData), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(EnvPrefix+"CHAIN_ID", "1337")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RPCEndpoint != "http://file:8545" {
		t.Errorf("RPCEndpoint = %q, want file value", cfg.RPCEndpoint)
	}
	if cfg.ChainID != 1337 {
		t.Errorf("ChainID = %d, want env value 1337", cfg.ChainID)
	}
	if cfg.RefreshInterval != time.Minute {
		t.Errorf("RefreshInterval = %v, want 1m", cfg.RefreshInterval)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want default", cfg.LogLevel)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	flags := BindFlags(fs)
	if err := fs.Parse([]string{"-http-addr", ":7000", "-use-memory=false"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	flags.Apply(cfg)

	if cfg.HTTPAddr != ":7000" {
		t.Errorf("HTTPAddr = %q, want flag value", cfg.HTTPAddr)
	}
	if cfg.UseMemory {
		t.Error("UseMemory should be overridden by flag")
	}
	if cfg.ChainID != 1337 {
		t.Errorf("unset flag changed ChainID to %d", cfg.ChainID)
	}
}

func TestLoad_SecretsIgnoredInFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "estate.yaml")
	if err := os.WriteFile(path, []byte("private_key: \"0x01\"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PrivateKey != "" {
		t.Error("private key must not be read from the config file")
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	t.Setenv("ESTATE_TEST_KEPT", "real")
	content := "# comment\nexport ESTATE_TEST_NEW=\"from file\"\nESTATE_TEST_KEPT=file\nbroken line\n"
	if err := os.WriteFile(".env", []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("ESTATE_TEST_NEW") })

	if err := LoadEnvFile(".env"); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("ESTATE_TEST_NEW"); got != "from file" {
		t.Errorf("ESTATE_TEST_NEW = %q", got)
	}
	if got := os.Getenv("ESTATE_TEST_KEPT"); got != "real" {
		t.Errorf("ESTATE_TEST_KEPT = %q, want existing value", got)
	}

	if err := LoadEnvFile(filepath.Join(dir, "missing")); err != nil {
		t.Errorf("missing file should be ignored: %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{RPCEndpoint: "http://x", ChainID: 1, ArtifactsDir: "a"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when DSNs are missing without use_memory")
	}

	cfg.UseMemory = true
	cfg.PrivateKey = "0x01"
	cfg.KeystoreFile = "key.json"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for both private key and keystore")
	}

	cfg.KeystoreFile = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	if !cfg.HasWallet() {
		t.Error("HasWallet should be true with a private key")
	}
}

func TestTrustedProxyNets(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvPrefix+"TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.7,::1")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	nets, err := cfg.TrustedProxyNets()
	if err != nil {
		t.Fatalf("TrustedProxyNets: %v", err)
	}
	if len(nets) != 3 {
		t.Fatalf("expected 3 networks, got %d", len(nets))
	}
	if got := nets[1].String(); got != "192.0.2.7/32" {
		t.Errorf("single host = %s, want 192.0.2.7/32", got)
	}
	if got := nets[2].String(); got != "::1/128" {
		t.Errorf("ipv6 host = %s, want ::1/128", got)
	}

	cfg.TrustedProxies = []string{"not-an-ip"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected Validate to reject an invalid proxy")
	}
}
