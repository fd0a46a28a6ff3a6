// Package i18n holds the localized user-facing messages and resolves the
// language of a request.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

const (
	// LangParam is the query parameter used to select a language.
	LangParam = "lang"
	// LangCookieName stores the client's language preference.
	LangCookieName = "estate_lang"
)

// Message keys.
const (
	MsgInternal            = "error.internal"
	MsgInvalidInput        = "error.invalid_input"
	MsgInvalidAddress      = "error.invalid_address"
	MsgNotFound            = "error.not_found"
	MsgRateLimited         = "error.rate_limited"
	MsgWalletNotConnected  = "error.wallet_not_connected"
	MsgWalletConnectFailed = "error.wallet_connect_failed"
	MsgWrongChain          = "error.wrong_chain"
	MsgTxFailed            = "error.tx_failed"
	MsgDAONotFound         = "error.dao_not_found"
	MsgIssueDAOUnavailable = "error.issue_dao_unavailable"
	MsgNotManager          = "error.not_manager"
	MsgOwnListing          = "error.own_listing"
	MsgAmountExceeds       = "error.amount_exceeds_listing"
	MsgNotSeller           = "error.not_seller"
	MsgNotExecutable       = "error.not_executable"
	MsgFieldsRequired      = "error.fields_required"
	MsgListingsUnavailable = "error.listings_unavailable"

	MsgWalletConnected    = "wallet.connected"
	MsgWalletDisconnected = "wallet.disconnected"
	MsgTxSubmitted        = "tx.submitted"
	MsgPropertyCreated    = "property.created"
	MsgListingCreated     = "listing.created"
	MsgListingPurchased   = "listing.purchased"
	MsgListingCancelled   = "listing.cancelled"
	MsgElectionProposed   = "election.proposed"
	MsgElectionVoted      = "election.voted"
	MsgElectionFinalized  = "election.finalized"
	MsgProposalCreated    = "proposal.created"
	MsgProposalVoted      = "proposal.voted"
	MsgProposalFinalized  = "proposal.finalized"
	MsgProposalExecuted   = "proposal.executed"
)

var (
	// English is the base locale every key must exist in.
	English = language.AmericanEnglish
	// TraditionalChinese is the default locale.
	TraditionalChinese = language.MustParse("zh-TW")
)

//go:embed locales/*.yaml
var localesFS embed.FS

type localeFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Bundle is a loaded message catalog.
type Bundle struct {
	builder   *catalog.Builder
	supported []language.Tag
	matcher   language.Matcher
	fallback  language.Tag
	keys      map[language.Tag]map[string]struct{}
}

var defaultBundle = mustLoad()

func mustLoad() *Bundle {
	b, err := LoadFS(localesFS, "locales")
	if err != nil {
		panic(fmt.Sprintf("i18n: load embedded locales: %v", err))
	}
	return b
}

// Default returns the embedded catalog.
func Default() *Bundle {
	return defaultBundle
}

// LoadFS loads every <locale>.yaml file in dir. The en-US locale is
// required and is the fallback for missing keys.
func LoadFS(fsys fs.FS, dir string) (*Bundle, error) {
	paths, err := fs.Glob(fsys, path.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("glob locales: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no locale files in %s", dir)
	}
	sort.Strings(paths)

	b := &Bundle{
		builder:  catalog.NewBuilder(catalog.Fallback(English)),
		fallback: English,
		keys:     make(map[language.Tag]map[string]struct{}),
	}

	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		var file localeFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}

		name := strings.TrimSuffix(path.Base(p), path.Ext(p))
		if file.Locale != name {
			return nil, fmt.Errorf("%s: locale %q must match file name", p, file.Locale)
		}
		tag, err := language.Parse(file.Locale)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}

		keys := make(map[string]struct{}, len(file.Messages))
		for key, msg := range file.Messages {
			if err := b.builder.SetString(tag, key, msg); err != nil {
				return nil, fmt.Errorf("%s: set %s: %w", p, key, err)
			}
			keys[key] = struct{}{}
		}
		b.keys[tag] = keys
		b.supported = append(b.supported, tag)
	}

	if _, ok := b.keys[English]; !ok {
		return nil, fmt.Errorf("base locale %s is not defined", English)
	}

	// The fallback must come first for the matcher's default.
	sort.SliceStable(b.supported, func(i, j int) bool {
		return b.supported[i] == b.fallback && b.supported[j] != b.fallback
	})
	b.matcher = language.NewMatcher(b.supported)
	return b, nil
}

// Supported returns the loaded locales, base locale first.
func (b *Bundle) Supported() []language.Tag {
	out := make([]language.Tag, len(b.supported))
	copy(out, b.supported)
	return out
}

// Missing returns the keys of the base locale that tag does not define.
func (b *Bundle) Missing(tag language.Tag) []string {
	have := b.keys[tag]
	var missing []string
	for key := range b.keys[b.fallback] {
		if _, ok := have[key]; !ok {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}

// Match returns the supported locale closest to the given tags.
func (b *Bundle) Match(tags ...language.Tag) language.Tag {
	if len(tags) == 0 {
		return b.fallback
	}
	_, idx, conf := b.matcher.Match(tags...)
	if conf == language.No {
		return b.fallback
	}
	return b.supported[idx]
}

// Parse resolves a language string to a supported locale.
func (b *Bundle) Parse(value string) (language.Tag, bool) {
	tag, err := language.Parse(strings.TrimSpace(value))
	if err != nil {
		return b.fallback, false
	}
	_, idx, conf := b.matcher.Match(tag)
	if conf == language.No {
		return b.fallback, false
	}
	return b.supported[idx], true
}

// Printer returns a message printer for tag.
func (b *Bundle) Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(b.builder))
}

// Sprintf formats the message key in tag.
func (b *Bundle) Sprintf(tag language.Tag, key string, args ...any) string {
	return b.Printer(tag).Sprintf(key, args...)
}

// ResolveTag determines the language of r from the lang query parameter,
// the language cookie and Accept-Language, falling back to def. The bool
// reports whether the query parameter should be persisted as a cookie.
func (b *Bundle) ResolveTag(r *http.Request, def language.Tag) (language.Tag, bool) {
	if r == nil {
		return def, false
	}

	if v := strings.TrimSpace(r.URL.Query().Get(LangParam)); v != "" {
		if tag, ok := b.Parse(v); ok {
			return tag, true
		}
	}

	if cookie, err := r.Cookie(LangCookieName); err == nil {
		if tag, ok := b.Parse(cookie.Value); ok {
			return tag, false
		}
	}

	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			if _, _, conf := b.matcher.Match(tags...); conf != language.No {
				return b.Match(tags...), false
			}
		}
	}

	return def, false
}

// SetLanguageCookie persists tag on the response.
func SetLanguageCookie(w http.ResponseWriter, tag language.Tag) {
	http.SetCookie(w, &http.Cookie{
		Name:     LangCookieName,
		Value:    tag.String(),
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
}
