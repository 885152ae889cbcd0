// Package cli is the command-line front end of the upload client: it opens
// the files named on the command line, sends them as one bundle and prints
// a line per file.
package cli
