package internal

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

// IFileStore keeps the raw uploads. The queue core only cares that a stable
// path comes back for every stored file.
type IFileStore interface {
	Save(ctx context.Context, orderID, name string, data io.Reader) (string, error)
	RemoveAll(ctx context.Context, orderID string) error
}

type DiskFileStore struct {
	root string
}

func NewDiskFileStore(root string) (*DiskFileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &DiskFileStore{root: root}, nil
}

func (s *DiskFileStore) Save(_ context.Context, orderID, name string, data io.Reader) (string, error) {
	dir := filepath.Join(s.root, orderID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name = filepath.Base(name)
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err = io.Copy(f, data); err != nil {
		return "", err
	}

	return filepath.Join(orderID, name), nil
}

func (s *DiskFileStore) RemoveAll(_ context.Context, orderID string) error {
	return os.RemoveAll(filepath.Join(s.root, orderID))
}
