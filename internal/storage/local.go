// Package storage keeps uploaded dataset blobs on local disk, addressed by the
// SHA-256 of their content. It stands in for a distributed blob store.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// KeyPrefix is prepended to a content hash to form the storage key
const KeyPrefix = "blob_"

var (
	// ErrNotFound is returned when no blob exists for a hash
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidHash is returned for anything that is not a lowercase hex SHA-256
	ErrInvalidHash = errors.New("invalid content hash")
	// ErrTooLarge is returned when a blob exceeds the store's size limit
	ErrTooLarge = errors.New("blob exceeds size limit")
)

var hashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Blob describes a stored object
type Blob struct {
	Hash string // Hex SHA-256 of the content
	Key  string // Storage key handed to callers
	Size int64  // Content length in bytes
}

// BlobStore is the storage backend the upload pipeline writes to
type BlobStore interface {
	Put(ctx context.Context, r io.Reader) (Blob, error)
	Open(hash string) (io.ReadCloser, error)
	Delete(hash string) error
	List() ([]string, error)
	ModTime(hash string) (time.Time, error)
}

// LocalStore writes blobs under a single directory named by content hash
type LocalStore struct {
	dir     string
	maxSize int64
}

// NewLocalStore creates dir if needed. maxSize <= 0 means unlimited.
func NewLocalStore(dir string, maxSize int64) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, maxSize: maxSize}, nil
}

// KeyFor returns the storage key of a content hash
func KeyFor(hash string) string {
	return KeyPrefix + hash
}

// Put streams r to disk while hashing it, then moves the temp file to its
// content address. Writing identical content twice yields the same blob.
func (s *LocalStore) Put(ctx context.Context, r io.Reader) (Blob, error) {
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return Blob{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()    // Remember the temp path for cleanup
	defer os.Remove(tmpName) // no-op after a successful rename

	src := r // Source reader
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}
	h := sha256.New()                              // Hash while writing
	n, err := io.Copy(io.MultiWriter(tmp, h), src) // Single pass over the content
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Blob{}, fmt.Errorf("write blob: %w", err)
	}
	if s.maxSize > 0 && n > s.maxSize {
		return Blob{}, ErrTooLarge // Read past the limit
	}
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}

	hash := hex.EncodeToString(h.Sum(nil)) // Content address
	if err := os.Rename(tmpName, s.path(hash)); err != nil {
		return Blob{}, fmt.Errorf("store blob: %w", err)
	}
	return Blob{Hash: hash, Key: KeyFor(hash), Size: n}, nil
}

// Open returns a reader for the blob with the given hash
func (s *LocalStore) Open(hash string) (io.ReadCloser, error) {
	if !hashPattern.MatchString(hash) {
		return nil, ErrInvalidHash
	}
	f, err := os.Open(s.path(hash)) // Open blob file
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Delete removes a blob. Deleting a missing blob is not an error.
func (s *LocalStore) Delete(hash string) error {
	if !hashPattern.MatchString(hash) {
		return ErrInvalidHash
	}
	err := os.Remove(s.path(hash)) // Remove blob file
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// List returns the hashes of all stored blobs
func (s *LocalStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir) // Read the upload directory
	if err != nil {
		return nil, err
	}
	var hashes []string // Slice to hold hashes
	for _, e := range entries {
		name := e.Name() // File name is the hash
		if e.IsDir() || strings.HasPrefix(name, ".") || !hashPattern.MatchString(name) {
			continue
		}
		hashes = append(hashes, name)
	}
	return hashes, nil
}

// ModTime reports when the blob was last written
func (s *LocalStore) ModTime(hash string) (time.Time, error) {
	if !hashPattern.MatchString(hash) {
		return time.Time{}, ErrInvalidHash
	}
	info, err := os.Stat(s.path(hash)) // Stat blob file
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func (s *LocalStore) path(hash string) string {
	return filepath.Join(s.dir, hash)
}
