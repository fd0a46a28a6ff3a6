package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"realestate-token-hub/internal/api"
)

type recorded struct {
	method string
	uri    string
	body   map[string]any
}

type recorder struct {
	mu    sync.Mutex
	calls []recorded
}

func (r *recorder) all() []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recorded(nil), r.calls...)
}

func newTestCLI(t *testing.T) (*cli, *recorder, *bytes.Buffer) {
	t.Helper()
	rc := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, uri: r.URL.RequestURI()}
		data, _ := io.ReadAll(r.Body)
		if len(data) > 0 {
			_ = json.Unmarshal(data, &rec.body)
		}
		rc.mu.Lock()
		rc.calls = append(rc.calls, rec)
		rc.mu.Unlock()

		if strings.HasSuffix(r.URL.Path, ".csv") {
			w.Header().Set("Content-Type", "text/csv")
			_, _ = w.Write([]byte("hash,type\n0x01,purchase\n"))
			return
		}
		if strings.HasPrefix(r.URL.Path, "/api/listings/404") {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(api.ErrorEnvelope{Error: api.ErrorBody{Code: "404", Message: "Listing not found"}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"ok": "yes"})
	}))
	t.Cleanup(srv.Close)

	out := &bytes.Buffer{}
	return &cli{client: api.NewClient(srv.URL, "", srv.Client()), out: out}, rc, out
}

func TestRun_Routes(t *testing.T) {
	tests := []struct {
		args   []string
		method string
		uri    string
		body   map[string]any
	}{
		{[]string{"status"}, http.MethodGet, "/status", nil},
		{[]string{"wallet"}, http.MethodGet, "/api/wallet", nil},
		{[]string{"wallet", "connect", "-key", "abc"}, http.MethodPost, "/api/wallet",
			map[string]any{"privateKey": "abc", "keystoreFile": "", "passphrase": ""}},
		{[]string{"wallet", "disconnect"}, http.MethodDelete, "/api/wallet", nil},
		{[]string{"properties", "-refresh"}, http.MethodGet, "/api/properties?refresh=1", nil},
		{[]string{"properties", "create", "Tower", "TWR", "Taipei Tower", "1000"}, http.MethodPost, "/api/properties",
			map[string]any{"name": "Tower", "symbol": "TWR", "propertyName": "Taipei Tower", "initialSupply": "1000"}},
		{[]string{"election", "0xabc"}, http.MethodGet, "/api/properties/0xabc/election", nil},
		{[]string{"election", "0xabc", "vote", "0xdef"}, http.MethodPost, "/api/properties/0xabc/election/votes",
			map[string]any{"candidate": "0xdef"}},
		{[]string{"election", "0xabc", "finalize"}, http.MethodPost, "/api/properties/0xabc/election/finalize", map[string]any{}},
		{[]string{"listings", "list", "-symbol", "TWR", "-group"}, http.MethodGet, "/api/listings?group=1&symbol=TWR", nil},
		{[]string{"listings", "buy", "3"}, http.MethodPost, "/api/listings/3/purchase", map[string]any{}},
		{[]string{"listings", "buy", "3", "2.5"}, http.MethodPost, "/api/listings/3/purchase", map[string]any{"amount": "2.5"}},
		{[]string{"listings", "cancel", "3"}, http.MethodDelete, "/api/listings/3", nil},
		{[]string{"proposals", "create", "Fix", "the", "roof"}, http.MethodPost, "/api/proposals",
			map[string]any{"content": "Fix the roof"}},
		{[]string{"proposals", "vote", "1", "no"}, http.MethodPost, "/api/proposals/1/votes", map[string]any{"support": false}},
		{[]string{"proposals", "execute", "1"}, http.MethodPost, "/api/proposals/1/execute", map[string]any{}},
		{[]string{"assets", "-sort", "value", "-dir", "desc"}, http.MethodGet, "/api/assets?dir=desc&sort=value", nil},
		{[]string{"txs", "-type", "purchase", "-page", "2"}, http.MethodGet, "/api/transactions?page=2&type=purchase", nil},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			c, rc, out := newTestCLI(t)
			if err := c.run(context.Background(), tt.args); err != nil {
				t.Fatalf("run: %v", err)
			}
			calls := rc.all()
			if len(calls) != 1 {
				t.Fatalf("expected 1 request, got %d", len(calls))
			}
			got := calls[0]
			if got.method != tt.method || got.uri != tt.uri {
				t.Fatalf("expected %s %s, got %s %s", tt.method, tt.uri, got.method, got.uri)
			}
			if tt.body != nil {
				want, _ := json.Marshal(tt.body)
				have, _ := json.Marshal(got.body)
				if string(want) != string(have) {
					t.Fatalf("expected body %s, got %s", want, have)
				}
			}
			if !strings.Contains(out.String(), `"ok": "yes"`) {
				t.Fatalf("expected indented response, got %q", out.String())
			}
		})
	}
}

func TestRun_CSV(t *testing.T) {
	c, _, out := newTestCLI(t)
	if err := c.run(context.Background(), []string{"txs", "-csv"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasPrefix(out.String(), "hash,type\n") {
		t.Fatalf("unexpected CSV output %q", out.String())
	}
}

func TestRun_ServerError(t *testing.T) {
	c, _, _ := newTestCLI(t)
	err := c.run(context.Background(), []string{"listings", "show", "404"})

	var ce *api.ClientError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ClientError, got %v", err)
	}
	if ce.Status != http.StatusNotFound || ce.Message != "Listing not found" {
		t.Fatalf("unexpected error %+v", ce)
	}
}

func TestRun_Usage(t *testing.T) {
	c, rc, _ := newTestCLI(t)
	for _, args := range [][]string{
		{"listings", "create", "0xabc"},
		{"election"},
		{"proposals", "vote", "1"},
		{"wallet", "rename"},
	} {
		if err := c.run(context.Background(), args); !errors.Is(err, errUsage) {
			t.Fatalf("%v: expected errUsage, got %v", args, err)
		}
	}
	if err := c.run(context.Background(), []string{"proposals", "vote", "1", "maybe"}); err == nil {
		t.Fatal("expected error for invalid vote")
	}
	if err := c.run(context.Background(), []string{"bogus"}); err == nil {
		t.Fatal("expected error for unknown command")
	}
	if n := len(rc.all()); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
}
