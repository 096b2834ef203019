package store

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/matzehuels/shapeserial/pkg/errors"
)

var entryAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// entry is the serialized form of a document in the file and Redis stores.
type entry struct {
	Document
	Compressed bool      `json:"compressed,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func encodeEntry(doc *Document, compressed bool, ttl time.Duration) ([]byte, error) {
	e := entry{Document: *doc, Compressed: compressed}
	if compressed {
		e.Payload = compress(doc.Payload)
	}
	if ttl > 0 {
		e.ExpiresAt = doc.UpdatedAt.Add(ttl)
	}
	data, err := entryAPI.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode entry %q", doc.Key)
	}
	return data, nil
}

// decodeEntry returns the document and whether it has expired.
func decodeEntry(data []byte) (*Document, bool, error) {
	var e entry
	if err := entryAPI.Unmarshal(data, &e); err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeCodec, err, "decode entry")
	}
	if !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt) {
		return nil, true, nil
	}
	doc := e.Document
	if e.Compressed {
		payload, err := decompress(doc.Payload)
		if err != nil {
			return nil, false, err
		}
		doc.Payload = payload
	}
	return &doc, false, nil
}

// Hash computes a SHA-256 hash of data as 64 hex characters.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
