package bundle

import (
	"bytes"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/davbundle/internal/server/multipart"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_ParsedByServerParser(t *testing.T) {
	var body bytes.Buffer
	w := NewWriter(&body)

	mtime := time.Unix(1700000000, 0)
	require.NoError(t, w.WriteFile(File{Path: "docs/a.txt", Size: 5, MTime: mtime, Checksum: "SHA1:abc", Content: strings.NewReader("hello")}))
	require.NoError(t, w.WriteFile(File{Path: "/b.bin", Size: 0, Content: strings.NewReader("")}))
	require.NoError(t, w.Close())

	mediaType, params, err := mime.ParseMediaType(w.ContentType())
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)

	p, err := multipart.NewParser(&body, params["boundary"])
	require.NoError(t, err)

	h, err := p.NextPartHeaders()
	require.NoError(t, err)
	assert.Equal(t, "PUT", h.Get("x-oc-method"))
	assert.Equal(t, "/docs/a.txt", h.Get("x-oc-path"))
	assert.Equal(t, "5", h.Get("content-length"))
	assert.Equal(t, "1700000000", h.Get("x-oc-mtime"))
	assert.Equal(t, "SHA1:abc", h.Get("oc-checksum"))

	var got bytes.Buffer
	ok, err := p.StreamContent(&got, 5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello", got.String())

	h, err = p.NextPartHeaders()
	require.NoError(t, err)
	assert.Equal(t, "/b.bin", h.Get("x-oc-path"))
	assert.Equal(t, "0", h.Get("content-length"))
	_, hasMTime := h.Lookup("x-oc-mtime")
	assert.False(t, hasMTime)

	_, err = p.NextPartHeaders()
	assert.ErrorIs(t, err, io.EOF)
	assert.True(t, p.EndDelimiterReached())
}

func TestWriter_SizeMismatch(t *testing.T) {
	w := NewWriter(io.Discard)
	err := w.WriteFile(File{Path: "short", Size: 10, Content: strings.NewReader("abc")})
	assert.ErrorIs(t, err, ErrSizeMismatch)

	err = w.WriteFile(File{Path: "long", Size: 2, Content: strings.NewReader("abc")})
	assert.ErrorIs(t, err, ErrSizeMismatch)

	err = w.WriteFile(File{Path: "neg", Size: -1, Content: strings.NewReader("")})
	assert.Error(t, err)
}

func TestOpenLocal(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(local, []byte("hello"), 0o600))

	f, fh, err := OpenLocal(local, "")
	require.NoError(t, err)
	defer fh.Close()

	assert.Equal(t, "hello.txt", f.Path)
	assert.Equal(t, int64(5), f.Size)
	assert.Equal(t, "SHA1:aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", f.Checksum)
	assert.False(t, f.MTime.IsZero())

	content, err := io.ReadAll(f.Content)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content), "content is rewound after hashing")

	f2, fh2, err := OpenLocal(local, "remote/name.txt")
	require.NoError(t, err)
	defer fh2.Close()
	assert.Equal(t, "remote/name.txt", f2.Path)

	_, _, err = OpenLocal(dir, "")
	assert.Error(t, err)
	_, _, err = OpenLocal(filepath.Join(dir, "missing"), "")
	assert.Error(t, err)
}
