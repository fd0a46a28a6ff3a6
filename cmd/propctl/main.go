// Package main is a command-line client of the hub API.
//
// Usage:
//
//	propctl [-server URL] [-lang TAG] <command> [args]
//
// Run propctl -h for the command list.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"

	"realestate-token-hub/internal/api"
	"realestate-token-hub/internal/config"
)

// clientConfig is read from ESTATE_* variables; flags override it.
type clientConfig struct {
	ServerURL string `env:"SERVER_URL" envDefault:"http://127.0.0.1:8080"`
	Lang      string `env:"LANG"`
}

const usage = `Usage: propctl [flags] <command> [args]

Commands:
  status
  wallet [show | connect -key HEX | connect -keystore FILE -passphrase P | disconnect]
  properties [list [-refresh] | show TOKEN | create NAME SYMBOL PROPERTY_NAME SUPPLY]
  election TOKEN [show [-refresh] | propose ADDRESS | vote ADDRESS | finalize]
  listings [list [-symbol S] [-group] [-refresh] | show ID | create TOKEN AMOUNT PRICE_ETH | buy ID [AMOUNT] | cancel ID]
  proposals [list [-refresh] | create CONTENT | vote ID yes|no | finalize ID | execute ID]
  assets [-owner ADDRESS] [-sort property|symbol|amount|value] [-dir asc|desc]
  txs [-type T] [-status S] [-property P] [-search Q] [-page N] [-csv]
  watch

Flags:
`

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "propctl: %v\n", err)
		os.Exit(1)
	}

	var cfg clientConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: config.EnvPrefix}); err != nil {
		fmt.Fprintf(os.Stderr, "propctl: parse env: %v\n", err)
		os.Exit(1)
	}

	flag.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "hub server base URL")
	flag.StringVar(&cfg.Lang, "lang", cfg.Lang, "message language (en-US, zh-TW)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := &cli{
		client: api.NewClient(cfg.ServerURL, cfg.Lang, nil),
		out:    os.Stdout,
	}
	if err := c.run(ctx, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "propctl: %v\n", err)
		os.Exit(1)
	}
}
