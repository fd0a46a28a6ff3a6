// Package main exports contract artifacts from a Foundry project: the ABI
// of every contract and the addresses recorded by the last deployment
// broadcast, in the layout the server loads with -artifacts.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"

	"realestate-token-hub/internal/contracts"
	"realestate-token-hub/internal/logging"
)

func main() {
	foundryRoot := flag.String("foundry-root", ".", "Foundry project root (contains out/ and broadcast/)")
	chainID := flag.Uint64("chain-id", 31337, "chain ID of the deployment broadcast")
	outDir := flag.String("out", "artifacts", "output directory")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")

	flag.Parse()

	base, err := logging.New(*logLevel, "console")
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer base.Sync()
	logger := logging.Named(base, "artifacts")

	logger.Infof("Reading broadcast log %s", contracts.BroadcastPath(*foundryRoot, *chainID))

	result, err := contracts.ExportArtifacts(*foundryRoot, *chainID, *outDir)
	if err != nil {
		logger.Fatalf("Export failed: %v", err)
	}

	logger.Infow("Contract addresses",
		"factory", result.Factory.Hex(),
		"marketplace", result.Marketplace.Hex(),
		"propertyDAO", optional(result.PropertyDAO),
		"issueDAO", optional(result.IssueDAO),
	)
	for _, f := range result.Files {
		logger.Infof("Wrote %s", f)
	}
	logger.Infof("Exported %d files to %s/", len(result.Files), *outDir)
}

func optional(addr common.Address) string {
	if addr == (common.Address{}) {
		return "not deployed"
	}
	return addr.Hex()
}
