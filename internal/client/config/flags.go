package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/davbundle/internal/flagx"
)

var clientFlags = []string{"-a", "-u", "-t", "-i"}

// ValueFlags lists the flags that consume the following argument, the JSON
// config switch included. Everything else on the command line is a file.
func ValueFlags() []string {
	return append([]string{"-c", "-config"}, clientFlags...)
}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the bundle server
//	-u string   user whose files home receives the upload
//	-t string   access token
//	-i int      request timeout in seconds (0 = none)
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, so positional file arguments are left alone.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], clientFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the server")
	fs.StringVar(&cfg.User, "u", cfg.User, "user name")
	fs.StringVar(&cfg.AccessToken, "t", cfg.AccessToken, "access token")
	timeout := fs.Int("i", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}
