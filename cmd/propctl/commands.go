package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"realestate-token-hub/internal/api"
	"realestate-token-hub/internal/feed"
)

var errUsage = errors.New("invalid arguments, run propctl -h")

type cli struct {
	client *api.Client
	out    io.Writer
}

func (c *cli) run(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "status":
		return c.show(ctx, "/status")
	case "wallet":
		return c.wallet(ctx, rest)
	case "properties":
		return c.properties(ctx, rest)
	case "election":
		return c.election(ctx, rest)
	case "listings":
		return c.listings(ctx, rest)
	case "proposals":
		return c.proposals(ctx, rest)
	case "assets":
		return c.assets(ctx, rest)
	case "txs":
		return c.transactions(ctx, rest)
	case "watch":
		return c.watch(ctx)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (c *cli) wallet(ctx context.Context, args []string) error {
	sub, args := subcommand(args, "show")
	switch sub {
	case "show":
		return c.show(ctx, "/api/wallet")
	case "connect":
		fs := flag.NewFlagSet("wallet connect", flag.ContinueOnError)
		key := fs.String("key", "", "hex private key")
		keystore := fs.String("keystore", "", "keystore file on the server host")
		passphrase := fs.String("passphrase", "", "keystore passphrase")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return c.post(ctx, "/api/wallet", map[string]string{
			"privateKey":   *key,
			"keystoreFile": *keystore,
			"passphrase":   *passphrase,
		})
	case "disconnect":
		return c.delete(ctx, "/api/wallet")
	}
	return errUsage
}

func (c *cli) properties(ctx context.Context, args []string) error {
	sub, args := subcommand(args, "list")
	switch sub {
	case "list":
		fs := flag.NewFlagSet("properties list", flag.ContinueOnError)
		refresh := fs.Bool("refresh", false, "reload from the chain")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return c.show(ctx, withQuery("/api/properties", refreshQuery(*refresh)))
	case "show":
		if len(args) != 1 {
			return errUsage
		}
		return c.show(ctx, "/api/properties/"+url.PathEscape(args[0]))
	case "create":
		if len(args) != 4 {
			return errUsage
		}
		return c.post(ctx, "/api/properties", map[string]string{
			"name":          args[0],
			"symbol":        args[1],
			"propertyName":  args[2],
			"initialSupply": args[3],
		})
	}
	return errUsage
}

func (c *cli) election(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	base := "/api/properties/" + url.PathEscape(args[0]) + "/election"
	sub, args := subcommand(args[1:], "show")
	switch sub {
	case "show":
		fs := flag.NewFlagSet("election show", flag.ContinueOnError)
		refresh := fs.Bool("refresh", false, "reload from the chain")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return c.show(ctx, withQuery(base, refreshQuery(*refresh)))
	case "propose":
		if len(args) != 1 {
			return errUsage
		}
		return c.post(ctx, base+"/candidates", map[string]string{"candidate": args[0]})
	case "vote":
		if len(args) != 1 {
			return errUsage
		}
		return c.post(ctx, base+"/votes", map[string]string{"candidate": args[0]})
	case "finalize":
		return c.post(ctx, base+"/finalize", nil)
	}
	return errUsage
}

func (c *cli) listings(ctx context.Context, args []string) error {
	sub, args := subcommand(args, "list")
	switch sub {
	case "list":
		fs := flag.NewFlagSet("listings list", flag.ContinueOnError)
		symbol := fs.String("symbol", "", "only listings of this token symbol")
		group := fs.Bool("group", false, "group listings by token symbol")
		refresh := fs.Bool("refresh", false, "reload from the chain")
		if err := fs.Parse(args); err != nil {
			return err
		}
		q := refreshQuery(*refresh)
		if *symbol != "" {
			q.Set("symbol", *symbol)
		}
		if *group {
			q.Set("group", "1")
		}
		return c.show(ctx, withQuery("/api/listings", q))
	case "show":
		if len(args) != 1 {
			return errUsage
		}
		return c.show(ctx, "/api/listings/"+url.PathEscape(args[0]))
	case "create":
		if len(args) != 3 {
			return errUsage
		}
		return c.post(ctx, "/api/listings", map[string]string{
			"token":  args[0],
			"amount": args[1],
			"price":  args[2],
		})
	case "buy":
		if len(args) < 1 || len(args) > 2 {
			return errUsage
		}
		body := map[string]string{}
		if len(args) == 2 {
			body["amount"] = args[1]
		}
		return c.post(ctx, "/api/listings/"+url.PathEscape(args[0])+"/purchase", body)
	case "cancel":
		if len(args) != 1 {
			return errUsage
		}
		return c.delete(ctx, "/api/listings/"+url.PathEscape(args[0]))
	}
	return errUsage
}

func (c *cli) proposals(ctx context.Context, args []string) error {
	sub, args := subcommand(args, "list")
	switch sub {
	case "list":
		fs := flag.NewFlagSet("proposals list", flag.ContinueOnError)
		refresh := fs.Bool("refresh", false, "reload from the chain")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return c.show(ctx, withQuery("/api/proposals", refreshQuery(*refresh)))
	case "create":
		if len(args) == 0 {
			return errUsage
		}
		return c.post(ctx, "/api/proposals", map[string]string{"content": strings.Join(args, " ")})
	case "vote":
		if len(args) != 2 {
			return errUsage
		}
		support, err := parseSupport(args[1])
		if err != nil {
			return err
		}
		return c.post(ctx, "/api/proposals/"+url.PathEscape(args[0])+"/votes", map[string]bool{"support": support})
	case "finalize", "execute":
		if len(args) != 1 {
			return errUsage
		}
		return c.post(ctx, "/api/proposals/"+url.PathEscape(args[0])+"/"+sub, nil)
	}
	return errUsage
}

func (c *cli) assets(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("assets", flag.ContinueOnError)
	owner := fs.String("owner", "", "holder address (default: connected wallet)")
	sortKey := fs.String("sort", "", "sort key")
	dir := fs.String("dir", "", "sort direction")
	if err := fs.Parse(args); err != nil {
		return err
	}
	q := url.Values{}
	setIf(q, "owner", *owner)
	setIf(q, "sort", *sortKey)
	setIf(q, "dir", *dir)
	return c.show(ctx, withQuery("/api/assets", q))
}

func (c *cli) transactions(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("txs", flag.ContinueOnError)
	kind := fs.String("type", "", "transaction type")
	status := fs.String("status", "", "transaction status")
	prop := fs.String("property", "", "property name or token address")
	search := fs.String("search", "", "search text")
	page := fs.Int("page", 0, "page number (1-based)")
	asCSV := fs.Bool("csv", false, "print the whole journal as CSV")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *asCSV {
		data, err := c.client.Raw(ctx, "/api/transactions.csv")
		if err != nil {
			return err
		}
		_, err = c.out.Write(data)
		return err
	}

	q := url.Values{}
	setIf(q, "type", *kind)
	setIf(q, "status", *status)
	setIf(q, "property", *prop)
	setIf(q, "search", *search)
	if *page > 0 {
		q.Set("page", strconv.Itoa(*page))
	}
	return c.show(ctx, withQuery("/api/transactions", q))
}

func (c *cli) watch(ctx context.Context) error {
	enc := json.NewEncoder(c.out)
	return c.client.Watch(ctx, func(ev feed.Event) {
		_ = enc.Encode(ev)
	})
}

func (c *cli) show(ctx context.Context, path string) error {
	var out json.RawMessage
	if err := c.client.Get(ctx, path, &out); err != nil {
		return err
	}
	return c.print(out)
}

func (c *cli) post(ctx context.Context, path string, body any) error {
	if body == nil {
		body = struct{}{}
	}
	var out json.RawMessage
	if err := c.client.Post(ctx, path, body, &out); err != nil {
		return err
	}
	return c.print(out)
}

func (c *cli) delete(ctx context.Context, path string) error {
	var out json.RawMessage
	if err := c.client.Delete(ctx, path, &out); err != nil {
		return err
	}
	return c.print(out)
}

func (c *cli) print(raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func subcommand(args []string, def string) (string, []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return def, args
	}
	return args[0], args[1:]
}

func parseSupport(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "y", "for", "true":
		return true, nil
	case "no", "n", "against", "false":
		return false, nil
	}
	return false, fmt.Errorf("vote must be yes or no, got %q", s)
}

func refreshQuery(refresh bool) url.Values {
	q := url.Values{}
	if refresh {
		q.Set("refresh", "1")
	}
	return q
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}
