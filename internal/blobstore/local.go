package blobstore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

const (
	DefaultExtension = ".csv"
	tmpDirName       = "tmp"
)

// LocalStore keeps one file per blob, named <uuid><ext>, under root.
type LocalStore struct {
	root string
	ext  string
}

// NewLocal creates a local store rooted at root. An empty ext selects
// DefaultExtension.
func NewLocal(root, ext string) (*LocalStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("blob store root is required")
	}
	ext = strings.TrimSpace(ext)
	if ext == "" {
		ext = DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if strings.ContainsAny(ext, `/\`) {
		return nil, fmt.Errorf("invalid blob file extension %q", ext)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, tmpDirName), 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{root: abs, ext: ext}, nil
}

// Root returns the absolute data directory.
func (s *LocalStore) Root() string {
	return s.root
}

// Put writes r under a fresh UUID. The file is staged in tmp/, synced, and
// then hard-linked into place, which fails instead of overwriting.
func (s *LocalStore) Put(ctx context.Context, r io.Reader) (PutResult, error) {
	var zero PutResult
	if s == nil {
		return zero, fmt.Errorf("blob store is not configured")
	}
	if r == nil {
		return zero, fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	tmp, err := os.CreateTemp(filepath.Join(s.root, tmpDirName), "put-*")
	if err != nil {
		return zero, err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	h, err := blake2b.New256(nil)
	if err != nil {
		_ = tmp.Close()
		return zero, err
	}
	n, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		_ = tmp.Close()
		return zero, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return zero, err
	}
	if err := tmp.Close(); err != nil {
		return zero, err
	}

	id := uuid.NewString()
	if err := os.Link(tmpPath, s.pathFor(id)); err != nil {
		if errors.Is(err, os.ErrExist) {
			return zero, fmt.Errorf("blob %s already exists", id)
		}
		return zero, err
	}

	return PutResult{BlobID: id, SizeBytes: n, Digest: hex.EncodeToString(h.Sum(nil))}, nil
}

// Get reads the whole payload into memory.
func (s *LocalStore) Get(ctx context.Context, id string) ([]byte, error) {
	path, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, mapNotExist(id, err)
	}
	return data, nil
}

// Delete removes a blob. A missing blob reports ErrNotFound.
func (s *LocalStore) Delete(ctx context.Context, id string) error {
	path, err := s.resolve(ctx, id)
	if err != nil {
		return err
	}
	return mapNotExist(id, os.Remove(path))
}

// Stat returns size and modification time.
func (s *LocalStore) Stat(ctx context.Context, id string) (BlobInfo, error) {
	path, err := s.resolve(ctx, id)
	if err != nil {
		return BlobInfo{}, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return BlobInfo{}, mapNotExist(id, err)
	}
	return BlobInfo{BlobID: id, SizeBytes: fi.Size(), ModTime: fi.ModTime()}, nil
}

// List returns every blob in the data directory. Files that do not look like
// blobs are skipped.
func (s *LocalStore) List(ctx context.Context) ([]BlobInfo, error) {
	if s == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	out := make([]BlobInfo, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), s.ext) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), s.ext)
		if !ValidID(id) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		out = append(out, BlobInfo{BlobID: id, SizeBytes: fi.Size(), ModTime: fi.ModTime()})
	}
	return out, nil
}

// ValidID reports whether id is a canonical lowercase UUID.
func ValidID(id string) bool {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return false
	}
	return parsed.String() == id
}

// Digest returns the hex BLAKE2b-256 of data, matching PutResult.Digest.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (s *LocalStore) resolve(ctx context.Context, id string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !ValidID(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return s.pathFor(id), nil
}

func (s *LocalStore) pathFor(id string) string {
	return filepath.Join(s.root, id+s.ext)
}

func mapNotExist(id string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

var _ BlobStore = (*LocalStore)(nil)
