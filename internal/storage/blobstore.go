// Package storage keeps attachment bytes in a content-addressed directory tree.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrInvalidRef is returned for references that are not a sha256 hex digest
var ErrInvalidRef = errors.New("invalid blob reference")

// BlobStore stores blobs under root/<first two hex chars>/<sha256>
type BlobStore struct {
	root string
}

// NewBlobStore creates the root directory when missing
func NewBlobStore(root string) (*BlobStore, error) {
	if root == "" {
		return nil, fmt.Errorf("blob store root is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create blob store root: %w", err)
	}
	return &BlobStore{root: root}, nil
}

// Put stores content and returns its reference. Storing the same bytes twice
// is a no-op.
func (s *BlobStore) Put(content []byte) (string, error) {
	sum := sha256.Sum256(content)
	ref := hex.EncodeToString(sum[:])
	path := s.path(ref)

	if _, err := os.Stat(path); err == nil {
		return ref, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("failed to create blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".blob-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp blob: %w", err)
	}
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to commit blob: %w", err)
	}

	return ref, nil
}

// Get returns the content of a blob
func (s *BlobStore) Get(ref string) ([]byte, error) {
	if !validRef(ref) {
		return nil, ErrInvalidRef
	}
	content, err := os.ReadFile(s.path(ref))
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", ref, err)
	}
	return content, nil
}

// Delete removes a blob; missing blobs are ignored
func (s *BlobStore) Delete(ref string) error {
	if !validRef(ref) {
		return ErrInvalidRef
	}
	if err := os.Remove(s.path(ref)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob %s: %w", ref, err)
	}
	return nil
}

func (s *BlobStore) path(ref string) string {
	return filepath.Join(s.root, ref[:2], ref)
}

func validRef(ref string) bool {
	if len(ref) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(ref)
	return err == nil
}
