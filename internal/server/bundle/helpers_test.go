package bundle

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/davbundle/internal/logging"
	"github.com/dmitrijs2005/davbundle/internal/server/locking"
	"github.com/dmitrijs2005/davbundle/internal/server/repositories/filecache"
	"github.com/dmitrijs2005/davbundle/internal/server/storage"
	"github.com/stretchr/testify/require"
)

const (
	testBoundary = "bundle_boundary_42"
	testHome     = "/remote.php/dav/files/alice"
)

type part struct {
	headers [][2]string
	body    string
}

func putPart(path, body string, extra ...[2]string) part {
	h := [][2]string{
		{"X-OC-Method", "PUT"},
		{"X-OC-Path", path},
		{"Content-Length", strconv.Itoa(len(body))},
	}
	return part{headers: append(h, extra...), body: body}
}

func buildBundle(parts ...part) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString("--" + testBoundary + "\r\n")
		for _, h := range p.headers {
			b.WriteString(h[0] + ": " + h[1] + "\r\n")
		}
		b.WriteString("\r\n")
		b.WriteString(p.body)
		b.WriteString("\r\n")
	}
	b.WriteString("--" + testBoundary + "--\r\n")
	return b.String()
}

type countingLocks struct {
	locking.Provider

	mu       sync.Mutex
	acquired map[string]int
	released map[string]int
}

func newCountingLocks() *countingLocks {
	return &countingLocks{
		Provider: locking.NewMemoryProvider(),
		acquired: map[string]int{},
		released: map[string]int{},
	}
}

func (c *countingLocks) Acquire(ctx context.Context, path string, mode locking.Mode) error {
	c.mu.Lock()
	c.acquired[path]++
	c.mu.Unlock()
	return c.Provider.Acquire(ctx, path, mode)
}

func (c *countingLocks) Release(ctx context.Context, path string, mode locking.Mode) error {
	c.mu.Lock()
	c.released[path]++
	c.mu.Unlock()
	return c.Provider.Release(ctx, path, mode)
}

type testEnv struct {
	home   string
	plugin *Plugin
	locks  *countingLocks
	tree   *filecache.MemoryRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	backend, err := storage.NewLocalBackend(root, false)
	require.NoError(t, err)

	env := &testEnv{
		home:  filepath.Join(root, "alice", "files"),
		locks: newCountingLocks(),
		tree:  filecache.NewMemoryRepository(),
	}
	env.plugin = New(storage.NewHomes(backend), env.locks, env.tree, logging.Nop())
	return env
}

func (e *testEnv) upload(t *testing.T, body string) (*Multistatus, error) {
	t.Helper()
	return e.plugin.HandleBundledUpload(context.Background(), &Request{
		Path:        testHome,
		ContentType: `multipart/mixed; boundary="` + testBoundary + `"`,
		Body:        strings.NewReader(body),
	})
}

func (e *testEnv) mkdir(t *testing.T, rel string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(e.home, filepath.FromSlash(rel)), 0o770))
}

func (e *testEnv) read(t *testing.T, rel string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(e.home, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(b)
}

// stagingLeftovers lists transfer files anywhere under the home.
func (e *testEnv) stagingLeftovers(t *testing.T) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(e.home, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.Contains(d.Name(), ".ocTransferId") {
			out = append(out, p)
		}
		return nil
	})
	require.NoError(t, err)
	return out
}
