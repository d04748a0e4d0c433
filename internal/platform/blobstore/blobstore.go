// Package blobstore stores medical record content. Metadata lives in
// Postgres with the records domain; this package only holds bytes, keyed by
// record ID. It provides a filesystem implementation for servers and an
// in-memory implementation for testing and development.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

var (
	ErrBlobNotFound       = errors.New("blob not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrEmptyKey           = errors.New("blob key is required")
)

// MaxFileSize is the maximum allowed blob size in bytes (100 MB).
const MaxFileSize = 100 * 1024 * 1024

// AllowedContentTypes lists MIME types accepted for record content.
var AllowedContentTypes = map[string]bool{
	"image/png":                true,
	"image/jpeg":               true,
	"image/dicom":              true,
	"application/pdf":          true,
	"application/dicom":        true,
	"text/plain":               true,
	"application/json":         true,
	"application/octet-stream": true,
}

// BlobInfo describes stored content after a successful write.
type BlobInfo struct {
	Key  string
	Size int64
	Hash string // hex-encoded SHA-256
}

// BlobStore is the contract for blob storage backends.
type BlobStore interface {
	// Put reads content to completion, enforces the size limit, and stores
	// it under key. An existing blob with the same key is overwritten.
	Put(ctx context.Context, key string, content io.Reader) (*BlobInfo, error)
	// Get returns a reader over the stored content. Callers must Close it.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the blob. Deleting a missing key returns ErrBlobNotFound.
	Delete(ctx context.Context, key string) error
}

// ValidateContentType reports whether a MIME type is accepted for upload.
func ValidateContentType(contentType string) error {
	if !AllowedContentTypes[contentType] {
		return ErrInvalidContentType
	}
	return nil
}

// readBounded reads all content, rejecting anything over MaxFileSize.
func readBounded(content io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

// ---------------------------------------------------------------------------
// Filesystem implementation
// ---------------------------------------------------------------------------

// FSBlobStore stores blobs as files under a root directory. Keys are record
// UUIDs, sharded by their first two characters to keep directories small.
type FSBlobStore struct {
	root string
}

// NewFSBlobStore creates the root directory if needed and returns a store.
func NewFSBlobStore(root string) (*FSBlobStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("creating blob root: %w", err)
	}
	return &FSBlobStore{root: root}, nil
}

func (s *FSBlobStore) path(key string) string {
	shard := "00"
	if len(key) >= 2 {
		shard = key[:2]
	}
	return filepath.Join(s.root, shard, key)
}

// Put writes content to a temp file in the target directory and renames it
// into place, so readers never observe a partial blob.
func (s *FSBlobStore) Put(_ context.Context, key string, content io.Reader) (*BlobInfo, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	data, err := readBounded(content)
	if err != nil {
		return nil, err
	}

	dest := s.path(key)
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return nil, fmt.Errorf("creating shard dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), key+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, fmt.Errorf("writing blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("closing blob: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("placing blob: %w", err)
	}

	h := sha256.Sum256(data)
	return &BlobInfo{
		Key:  key,
		Size: int64(len(data)),
		Hash: fmt.Sprintf("%x", h),
	}, nil
}

func (s *FSBlobStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	f, err := os.Open(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("opening blob: %w", err)
	}
	return f, nil
}

func (s *FSBlobStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return ErrBlobNotFound
	}
	if err != nil {
		return fmt.Errorf("deleting blob: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

// InMemoryBlobStore is a thread-safe, in-memory BlobStore for testing/dev.
type InMemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewInMemoryBlobStore returns a ready-to-use InMemoryBlobStore.
func NewInMemoryBlobStore() *InMemoryBlobStore {
	return &InMemoryBlobStore{
		blobs: make(map[string][]byte),
	}
}

func (s *InMemoryBlobStore) Put(_ context.Context, key string, content io.Reader) (*BlobInfo, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	data, err := readBounded(content)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.blobs[key] = data
	s.mu.Unlock()

	h := sha256.Sum256(data)
	return &BlobInfo{
		Key:  key,
		Size: int64(len(data)),
		Hash: fmt.Sprintf("%x", h),
	}, nil
}

func (s *InMemoryBlobStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	s.mu.RLock()
	data, ok := s.blobs[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *InMemoryBlobStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[key]; !ok {
		return ErrBlobNotFound
	}
	delete(s.blobs, key)
	return nil
}
