package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Local stores avatar files on disk under a single flat directory,
// the same directory gin serves at /uploads.
type Local struct {
	dir string
}

func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir}, nil
}

func (l *Local) Dir() string {
	return l.dir
}

func (l *Local) Save(ctx context.Context, name string, r io.Reader) error {
	// name is always a bare filename; reject anything that escapes the dir
	if filepath.Base(name) != name {
		return fmt.Errorf("invalid file name: %q", name)
	}

	f, err := os.OpenFile(filepath.Join(l.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	return f.Close()
}

func (l *Local) Remove(ctx context.Context, name string) error {
	if filepath.Base(name) != name {
		return fmt.Errorf("invalid file name: %q", name)
	}
	err := os.Remove(filepath.Join(l.dir, name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (l *Local) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}
