package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRedact(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(Redact(core)).With(zap.String("keystore_passphrase", "hunter2"))

	logger.Sugar().Infow("wallet connected",
		"address", "0xabc",
		"private_key", "0xdeadbeef",
	)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["private_key"] != redactedValue {
		t.Errorf("private_key = %v, want redacted", ctx["private_key"])
	}
	if ctx["keystore_passphrase"] != redactedValue {
		t.Errorf("keystore_passphrase = %v, want redacted", ctx["keystore_passphrase"])
	}
	if ctx["address"] != "0xabc" {
		t.Errorf("address = %v, want 0xabc", ctx["address"])
	}
}

func TestNew(t *testing.T) {
	if _, err := New("debug", "json"); err != nil {
		t.Fatalf("New(json): %v", err)
	}
	if _, err := New("info", ""); err != nil {
		t.Fatalf("New(console): %v", err)
	}
	if _, err := New("loud", "json"); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := New("info", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestIsSensitiveKey(t *testing.T) {
	tests := map[string]bool{
		"private_key":  true,
		"Passphrase":   true,
		"db_password":  true,
		"token":        false,
		"tokenAddress": false,
	}
	for key, want := range tests {
		if got := IsSensitiveKey(key); got != want {
			t.Errorf("IsSensitiveKey(%q) = %v, want %v", key, got, want)
		}
	}
}
