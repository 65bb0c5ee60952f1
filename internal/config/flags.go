package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/dreamsync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-s string   base URL of the remote document collection
//	-db string  path to the local SQLite database
//	-cache string  media cache root directory
//	-t int      HTTP timeout in seconds
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, so CLI subcommand flags stay untouched.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-s", "-db", "-cache", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "s", cfg.ServerURL, "base URL of the remote document collection")
	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "path to the local SQLite database")
	fs.StringVar(&cfg.CacheDir, "cache", cfg.CacheDir, "media cache root directory")
	timeout := fs.Int("t", int(cfg.HTTPTimeout.Seconds()), "HTTP timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.HTTPTimeout = time.Duration(*timeout) * time.Second
}
