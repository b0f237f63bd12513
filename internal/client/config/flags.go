package config

import (
	"flag"
	"os"
	"time"

	"github.com/example/cardbox/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the remote API (default from Config)
//	-f string   path of the local SQLite replica file
//	-i int      automatic sync interval in seconds
//	-o int      online check interval in seconds
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-f", "-i", "-o"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the remote API")
	fs.StringVar(&cfg.DatabasePath, "f", cfg.DatabasePath, "path of the local replica database")
	syncInterval := fs.Int("i", int(cfg.SyncInterval.Seconds()), "automatic sync interval (in seconds)")
	onlineCheckInterval := fs.Int("o", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
}
