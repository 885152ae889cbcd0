package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/davbundle/internal/common"
	"github.com/dmitrijs2005/davbundle/internal/filex"
	"github.com/google/uuid"
)

var chtimes = os.Chtimes

// LocalBackend keeps files under {root}/{user}/files on the local disk.
type LocalBackend struct {
	root     string
	readOnly bool
}

func NewLocalBackend(dataDir string, readOnly bool) (*LocalBackend, error) {
	root, err := filex.EnsureDir(dataDir)
	if err != nil {
		return nil, err
	}
	return &LocalBackend{root: root, readOnly: readOnly}, nil
}

func (b *LocalBackend) View(owner string) (View, error) {
	home := filepath.Join(b.root, owner, "files")
	if !b.readOnly {
		if err := os.MkdirAll(home, 0o770); err != nil {
			return nil, fmt.Errorf("create files home: %w", err)
		}
	}
	return &localView{owner: owner, home: home, readOnly: b.readOnly}, nil
}

type localView struct {
	owner    string
	home     string
	readOnly bool
}

func (v *localView) Owner() string { return v.owner }

func (v *localView) AbsolutePath(rel string) string { return absolutePath(v.owner, rel) }

func (v *localView) osPath(rel string) (string, error) {
	clean, err := filex.CleanRelative(rel)
	if err != nil {
		return "", err
	}
	return filepath.Join(v.home, filepath.FromSlash(clean)), nil
}

func (v *localView) NodeExists(ctx context.Context, rel string) (bool, error) {
	p, err := v.osPath(rel)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// IsCreatable reports whether new files may be created inside folder rel.
func (v *localView) IsCreatable(ctx context.Context, rel string) (bool, error) {
	if v.readOnly {
		return false, nil
	}
	p, err := v.osPath(rel)
	if err != nil {
		return false, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if !fi.IsDir() {
		return false, nil
	}
	return writable(p, fi), nil
}

func (v *localView) CreateStaging(ctx context.Context, rel string) (Staging, error) {
	if v.readOnly {
		return nil, common.ErrReadOnly
	}
	target, err := v.osPath(rel)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf(".%s.ocTransferId%s.part", filepath.Base(target), uuid.NewString())
	p := filepath.Join(filepath.Dir(target), name)

	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}
	return &localStaging{file: f, path: p}, nil
}

func (v *localView) Commit(ctx context.Context, st Staging, rel string, opts CommitOptions) (FileInfo, error) {
	ls, ok := st.(*localStaging)
	if !ok {
		return FileInfo{}, fmt.Errorf("commit: foreign staging target %T", st)
	}
	target, err := v.osPath(rel)
	if err != nil {
		return FileInfo{}, err
	}

	if err := ls.Close(); err != nil {
		return FileInfo{}, err
	}
	if fi, err := os.Stat(target); err == nil && fi.IsDir() {
		return FileInfo{}, fmt.Errorf("commit: %s is a folder", rel)
	}
	// The mtime goes onto the staging file so a failure leaves the target untouched.
	if !opts.MTime.IsZero() {
		if err := chtimes(ls.path, opts.MTime, opts.MTime); err != nil {
			return FileInfo{}, fmt.Errorf("commit: set mtime: %w", err)
		}
	}
	if err := os.Rename(ls.path, target); err != nil {
		return FileInfo{}, fmt.Errorf("commit: %w", err)
	}
	ls.committed = true

	fi, err := os.Stat(target)
	if err != nil {
		return FileInfo{}, err
	}
	clean, _ := filex.CleanRelative(rel)
	return FileInfo{
		Path:   clean,
		Size:   fi.Size(),
		ETag:   newETag(),
		MTime:  fi.ModTime(),
		FileID: fileID(v.owner, clean),
	}, nil
}

type localStaging struct {
	file      *os.File
	path      string
	closed    bool
	committed bool
}

func (s *localStaging) Write(b []byte) (int, error) {
	return s.file.Write(b)
}

func (s *localStaging) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

func (s *localStaging) Discard() error {
	_ = s.Close()
	if s.committed {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
