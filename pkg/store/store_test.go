package store

import (
	"bytes"
	"context"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/matzehuels/shapeserial/pkg/config"
	"github.com/matzehuels/shapeserial/pkg/errors"
)

// exerciseStore runs the behavior every backend shares.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	payload := bytes.Repeat([]byte(`{"@type":"geom.Point","@properties":{"x":1.0,"y":2.0}}`), 20)

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Get(missing) err = %v, want NOT_FOUND", err)
	}

	for _, key := range []string{"b/doc", "a"} {
		if err := s.Put(ctx, &Document{Key: key, Format: "json", Payload: payload}); err != nil {
			t.Fatalf("Put(%s) error = %v", key, err)
		}
	}
	doc, err := s.Get(ctx, "b/doc")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Key != "b/doc" || doc.Format != "json" || !bytes.Equal(doc.Payload, payload) || doc.UpdatedAt.IsZero() {
		t.Errorf("Get() = %+v", doc)
	}

	keys, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"a", "b/doc"}; !reflect.DeepEqual(keys, want) {
		t.Errorf("List() = %v, want %v", keys, want)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "a"); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, "a"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Get(deleted) err = %v", err)
	}
	_ = s.Delete(ctx, "b/doc")

	if err := s.Put(ctx, &Document{Key: "../etc", Format: "json"}); !errors.Is(err, errors.ErrCodeInvalidKey) {
		t.Errorf("Put(../etc) err = %v, want INVALID_KEY", err)
	}
	if err := s.Put(ctx, &Document{Key: "k", Format: "JSON"}); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("Put(bad format) err = %v, want INVALID_FORMAT", err)
	}
}

func TestFileStore(t *testing.T) {
	for _, compress := range []bool{false, true} {
		s, err := NewFileStore(t.TempDir(), FileOptions{Compress: compress})
		if err != nil {
			t.Fatal(err)
		}
		exerciseStore(t, s)
	}
}

func TestFileStoreCompresses(t *testing.T) {
	ctx := context.Background()
	payload := bytes.Repeat([]byte("shape "), 1000)
	sizes := map[bool]int64{}
	for _, compress := range []bool{false, true} {
		s, err := NewFileStore(t.TempDir(), FileOptions{Compress: compress})
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Put(ctx, &Document{Key: "k", Format: "json", Payload: payload}); err != nil {
			t.Fatal(err)
		}
		info, err := os.Stat(s.path("k"))
		if err != nil {
			t.Fatal(err)
		}
		sizes[compress] = info.Size()
	}
	if sizes[true] >= sizes[false] {
		t.Errorf("compressed entry %d bytes, uncompressed %d", sizes[true], sizes[false])
	}
}

func TestFileStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir(), FileOptions{TTL: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	old := &Document{Key: "old", Format: "json", UpdatedAt: time.Now().Add(-time.Hour)}
	if err := s.Put(ctx, old); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "old"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Get(expired) err = %v, want NOT_FOUND", err)
	}
	if _, err := os.Stat(s.path("old")); !os.IsNotExist(err) {
		t.Error("expired entry was not removed")
	}
}

func TestFileStoreCorruptEntry(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir(), FileOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, &Document{Key: "k", Format: "json"}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.path("k"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Get(corrupt) err = %v, want NOT_FOUND", err)
	}
}

func TestNullStore(t *testing.T) {
	ctx := context.Background()
	s := NewNullStore()
	defer s.Close()

	if err := s.Put(ctx, &Document{Key: "k", Format: "json", Payload: []byte("{}")}); err != nil {
		t.Errorf("Put() error = %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Get() err = %v, want NOT_FOUND", err)
	}
	if keys, _ := s.List(ctx); len(keys) != 0 {
		t.Errorf("List() = %v", keys)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default().Store
	cfg.Dir = t.TempDir()

	s, err := Open(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if fs, ok := s.(*FileStore); !ok || fs.Dir() != cfg.Dir {
		t.Errorf("Open(file) = %T", s)
	}

	cfg.Backend = config.BackendNull
	if s, err := Open(ctx, cfg); err != nil {
		t.Error(err)
	} else if _, ok := s.(*NullStore); !ok {
		t.Errorf("Open(null) = %T", s)
	}

	cfg.Backend = "s3"
	if _, err := Open(ctx, cfg); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Open(s3) err = %v", err)
	}
}

func TestHash(t *testing.T) {
	if Hash([]byte("hello")) != Hash([]byte("hello")) {
		t.Error("Hash should be deterministic")
	}
	if Hash([]byte("hello")) == Hash([]byte("world")) {
		t.Error("different inputs should produce different hashes")
	}
	if len(Hash([]byte("hello"))) != 64 {
		t.Error("Hash length should be 64")
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("SHAPESERIAL_REDIS_ADDR")
	if addr == "" {
		t.Skip("SHAPESERIAL_REDIS_ADDR not set")
	}
	s, err := NewRedisStore(context.Background(), RedisOptions{
		Addr:     addr,
		Prefix:   "shapeserial:test:" + time.Now().Format("150405.000000") + ":",
		TTL:      time.Minute,
		Compress: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("SHAPESERIAL_MONGO_URI")
	if uri == "" {
		t.Skip("SHAPESERIAL_MONGO_URI not set")
	}
	s, err := NewMongoStore(context.Background(), MongoOptions{
		URI:        uri,
		Database:   "shapeserial_test",
		Collection: "documents_" + time.Now().Format("150405000000"),
		TTL:        time.Hour,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = s.coll.Drop(context.Background())
		s.Close()
	}()
	exerciseStore(t, s)
}
