// Package config loads runtime configuration for the upload client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// # JSON schema
//
//	{
//	  "server_url": "https://cloud.example.com",
//	  "user": "alice",
//	  "access_token": "eyJ...",
//	  "request_timeout": "2m"
//	}
package config
