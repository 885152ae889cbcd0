//go:build !unix

package storage

import "os"

func writable(_ string, fi os.FileInfo) bool {
	return fi.Mode().Perm()&0o200 != 0
}
