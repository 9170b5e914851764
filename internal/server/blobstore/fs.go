package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/common"
	"github.com/young8Programmer/Secure-Cloud-File-Manager-Encryptor-Bot/internal/filex"
)

// FSStore keeps blobs as files below a root directory.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	abs, err := filex.EnsureDir(root)
	if err != nil {
		return nil, fmt.Errorf("blob root: %w", err)
	}
	return &FSStore{root: abs}, nil
}

func (s *FSStore) path(locator string) (string, error) {
	if err := validateLocator(locator); err != nil {
		return "", err
	}
	full := filepath.Join(s.root, filepath.FromSlash(locator))
	if !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	return full, nil
}

// Put writes the blob atomically. A reader sees the old blob, none, or the
// complete new one.
func (s *FSStore) Put(ctx context.Context, locator string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(locator)
	if err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(p, data, 0o600); err != nil {
		return fmt.Errorf("put blob: %w", err)
	}
	return nil
}

func (s *FSStore) Get(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(locator)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("get blob: %w", err)
	}
	return data, nil
}

func (s *FSStore) Delete(ctx context.Context, locator string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}
