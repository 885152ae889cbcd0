package config

import (
	"flag"
	"os"
	"slices"
	"time"

	"github.com/dmitrijs2005/davbundle/internal/flagx"
)

var serverFlags = []string{"-a", "-r", "-k", "-d", "-s", "-t", "-m", "-o", "-l", "-f", "-u", "-p", "-b", "-g", "-e"}

var boolFlags = []string{"-o"}

// ValueFlags lists the flags that consume the following argument, the JSON
// config switch included.
func ValueFlags() []string {
	out := []string{"-c", "-config"}
	for _, f := range serverFlags {
		if !slices.Contains(boolFlags, f) {
			out = append(out, f)
		}
	}
	return out
}

// parseFlags overlays command-line flags onto config.
//
//	-a string   HTTP bind address (":8080")
//	-r string   data directory for the local backend
//	-k string   storage backend: local or s3
//	-d string   database DSN for the tree cache and locks
//	-s string   JWT HMAC secret
//	-t int      access token validity, minutes
//	-m int      maximum bundle size, MiB (0 = unlimited)
//	-o          read-only mode, every bundle is refused
//	-l string   log level
//	-f string   log format: json or text
//	-u -p -b -g -e   S3 user, password, bucket, region, endpoint
//
// A malformed flag value panics, as with the JSON file.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], serverFlags, boolFlags...)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DataDir, "r", config.DataDir, "data directory")
	fs.StringVar(&config.StorageBackend, "k", config.StorageBackend, "storage backend (local|s3)")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	accessTokenValidity := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")
	maxBundle := fs.Int64("m", config.MaxBundleSize>>20, "max bundle size (in MiB)")
	fs.BoolVar(&config.ReadOnly, "o", config.ReadOnly, "read-only mode")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.LogFormat, "f", config.LogFormat, "log format (json|text)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
	config.MaxBundleSize = *maxBundle << 20
}
