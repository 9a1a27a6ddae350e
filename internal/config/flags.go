package config

import (
	"flag"
	"os"

	"veritas/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-d string   PostgreSQL DSN of the remote store (empty: local fallback)
//	-f string   path of the local SQLite database
//	-t string   IANA timezone for usage dates
//
// Args are filtered with flagx.FilterArgs so flags owned by other stages
// (like -c/--config) do not interfere.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-f", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "PostgreSQL DSN of the remote user store")
	fs.StringVar(&cfg.LocalDBPath, "f", cfg.LocalDBPath, "path of the local database file")
	fs.StringVar(&cfg.Timezone, "t", cfg.Timezone, "reference timezone for usage dates")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
