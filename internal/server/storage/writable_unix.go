//go:build unix

package storage

import (
	"os"

	"golang.org/x/sys/unix"
)

func writable(path string, _ os.FileInfo) bool {
	return unix.Access(path, unix.W_OK) == nil
}
