package config

import "flag"

// Flags binds command-line overrides. Only flags given on the command
// line are applied.
type Flags struct {
	fs  *flag.FlagSet
	val Config
}

// BindFlags registers the configuration flags on fs.
func BindFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVar(&f.val.RPCEndpoint, "rpc-endpoint", "", "EVM JSON-RPC endpoint")
	fs.Int64Var(&f.val.ChainID, "chain-id", 0, "expected chain ID")
	fs.StringVar(&f.val.ArtifactsDir, "artifacts", "", "directory with contract artifacts")
	fs.StringVar(&f.val.KeystoreFile, "keystore", "", "encrypted keystore file")
	fs.BoolVar(&f.val.UseMemory, "use-memory", false, "use in-memory storage instead of PostgreSQL and ClickHouse")
	fs.StringVar(&f.val.PostgresDSN, "postgres-dsn", "", "PostgreSQL connection string")
	fs.StringVar(&f.val.ClickhouseDSN, "clickhouse-dsn", "", "ClickHouse connection string")
	fs.StringVar(&f.val.HTTPAddr, "http-addr", "", "HTTP listen address")
	fs.DurationVar(&f.val.RefreshInterval, "refresh-interval", 0, "cache refresh interval")
	fs.StringVar(&f.val.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&f.val.LogFormat, "log-format", "", "log format (console, json)")
	return f
}

// Apply copies the flags that were set onto cfg.
func (f *Flags) Apply(cfg *Config) {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "rpc-endpoint":
			cfg.RPCEndpoint = f.val.RPCEndpoint
		case "chain-id":
			cfg.ChainID = f.val.ChainID
		case "artifacts":
			cfg.ArtifactsDir = f.val.ArtifactsDir
		case "keystore":
			cfg.KeystoreFile = f.val.KeystoreFile
		case "use-memory":
			cfg.UseMemory = f.val.UseMemory
		case "postgres-dsn":
			cfg.PostgresDSN = f.val.PostgresDSN
		case "clickhouse-dsn":
			cfg.ClickhouseDSN = f.val.ClickhouseDSN
		case "http-addr":
			cfg.HTTPAddr = f.val.HTTPAddr
		case "refresh-interval":
			cfg.RefreshInterval = f.val.RefreshInterval
		case "log-level":
			cfg.LogLevel = f.val.LogLevel
		case "log-format":
			cfg.LogFormat = f.val.LogFormat
		}
	})
}
