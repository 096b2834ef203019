// Package store keeps serialized documents under caller-chosen keys.
//
// Backends:
//
//   - [FileStore]: one file per key under a directory, optionally zstd
//     compressed. The default for the CLI.
//   - [RedisStore]: one string value per key, with an expiry.
//   - [MongoStore]: one BSON document per key in a collection.
//   - [NullStore]: stores nothing. Useful in tests and to disable storage.
//
// Stores hold payloads verbatim; they neither parse nor validate them. The
// HTTP service deserializes a payload in safe mode before it is stored.
package store

import (
	"context"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/matzehuels/shapeserial/pkg/config"
	"github.com/matzehuels/shapeserial/pkg/errors"
)

// ErrNotFound is the cause of every NOT_FOUND error a store returns.
var ErrNotFound = errors.New(errors.ErrCodeNotFound, "document not found")

// Document is a stored payload.
type Document struct {
	Key       string    `json:"key" bson:"_id"`
	Format    string    `json:"format" bson:"format"`
	Payload   []byte    `json:"payload" bson:"payload"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Store is a keyed document store. Implementations are safe for concurrent
// use.
type Store interface {
	// Get returns the document stored under key, or a NOT_FOUND error.
	Get(ctx context.Context, key string) (*Document, error)
	// Put stores doc under doc.Key, replacing any previous document.
	Put(ctx context.Context, doc *Document) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns the stored keys, sorted.
	List(ctx context.Context) ([]string, error)
	// Close releases connections.
	Close() error
}

// Open creates the store selected by cfg.
func Open(ctx context.Context, cfg config.Store) (Store, error) {
	switch cfg.Backend {
	case config.BackendFile, "":
		dir := cfg.Dir
		if dir == "" {
			d, err := config.DataDir()
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInternal, err, "locate data directory")
			}
			dir = d
		}
		return NewFileStore(dir, FileOptions{Compress: cfg.Compress, TTL: cfg.TTL.Duration})
	case config.BackendRedis:
		return NewRedisStore(ctx, RedisOptions{Addr: cfg.RedisAddr, DB: cfg.RedisDB, TTL: cfg.TTL.Duration})
	case config.BackendMongo:
		return NewMongoStore(ctx, MongoOptions{
			URI:        cfg.MongoURI,
			Database:   cfg.MongoDatabase,
			Collection: cfg.MongoCollection,
			TTL:        cfg.TTL.Duration,
		})
	case config.BackendNull:
		return NewNullStore(), nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown store backend %q", cfg.Backend)
	}
}

func notFound(key string) error {
	return errors.Wrap(errors.ErrCodeNotFound, ErrNotFound, "document %q", key)
}

func checkDocument(doc *Document) error {
	if doc == nil {
		return errors.New(errors.ErrCodeInvalidInput, "nil document")
	}
	if err := errors.ValidateKey(doc.Key); err != nil {
		return err
	}
	return errors.ValidateFormatName(doc.Format)
}

// ===== Compression =====

// The encoder and decoder are safe for concurrent EncodeAll/DecodeAll calls
// and reused across stores.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("store: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("store: zstd decoder initialization failed: " + err.Error())
	}
}

func compress(data []byte) []byte {
	return zstdEncoder.EncodeAll(data, nil)
}

func decompress(data []byte) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCodec, err, "zstd decompress")
	}
	return out, nil
}
