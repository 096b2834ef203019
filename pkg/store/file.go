package store

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/observability"
)

const backendFile = "file"

// FileOptions configures a [FileStore].
type FileOptions struct {
	// Compress stores payloads zstd-compressed.
	Compress bool
	// TTL expires documents this long after their last Put. Zero keeps them.
	TTL time.Duration
}

// FileStore keeps one JSON entry file per key. Keys are hashed into a
// two-level directory layout, so any valid key is a safe file name.
type FileStore struct {
	dir  string
	opts FileOptions
}

// NewFileStore creates a file store in dir, creating the directory if
// needed.
func NewFileStore(dir string, opts FileOptions) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create store directory")
	}
	return &FileStore{dir: dir, opts: opts}, nil
}

// Dir returns the store directory.
func (s *FileStore) Dir() string { return s.dir }

// Get implements Store. Unreadable and expired entries are removed and
// reported as missing.
func (s *FileStore) Get(ctx context.Context, key string) (*Document, error) {
	if err := errors.ValidateKey(key); err != nil {
		return nil, err
	}
	path := s.path(key)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		observability.Store().OnStoreMiss(ctx, backendFile)
		return nil, notFound(key)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "read %q", key)
	}

	doc, expired, err := decodeEntry(data)
	if err != nil || expired || doc.Key != key {
		_ = os.Remove(path)
		observability.Store().OnStoreMiss(ctx, backendFile)
		return nil, notFound(key)
	}
	observability.Store().OnStoreHit(ctx, backendFile)
	return doc, nil
}

// Put implements Store.
func (s *FileStore) Put(ctx context.Context, doc *Document) error {
	if err := checkDocument(doc); err != nil {
		return err
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}
	data, err := encodeEntry(doc, s.opts.Compress, s.opts.TTL)
	if err != nil {
		return err
	}

	path := s.path(doc.Key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write %q", doc.Key)
	}
	// Write to a temporary file first so readers never see a partial entry.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write %q", doc.Key)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(errors.ErrCodeInternal, err, "write %q", doc.Key)
	}
	observability.Store().OnStorePut(ctx, backendFile, len(data))
	return nil
}

// Delete implements Store.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := errors.ValidateKey(key); err != nil {
		return err
	}
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeInternal, err, "delete %q", key)
	}
	return nil
}

// List implements Store. It reads every entry, so it is meant for the CLI
// rather than hot paths.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		doc, expired, err := decodeEntry(data)
		if err != nil || expired {
			return nil
		}
		keys = append(keys, doc.Key)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "list %s", s.dir)
	}
	slices.Sort(keys)
	return keys, nil
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }

// path uses the first two hash characters as a subdirectory to keep
// directories small.
func (s *FileStore) path(key string) string {
	hash := Hash([]byte(key))
	return filepath.Join(s.dir, hash[:2], hash[2:]+".json")
}

var _ Store = (*FileStore)(nil)
