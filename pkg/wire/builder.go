package wire

import (
	"github.com/matzehuels/shapeserial/pkg/errors"
)

// Builder turns tagged records into values while an engine parses input.
//
// Engines call Admit as soon as a tag has been read and before any of the
// record's properties are parsed. A non-nil error aborts the whole load; no
// partial object is returned. Build is called bottom-up once all properties
// of the record are available.
type Builder interface {
	// Admit decides whether tag may be instantiated.
	Admit(tag string) error

	// Build constructs the value for a completed record.
	Build(tag string, props *Props) (any, error)

	// MaxDepth bounds nesting of sequences, mappings and records.
	MaxDepth() int
}

// RecordBuilder builds raw [*Record] values without instantiating any type.
// Every syntactically valid tag is admitted.
type RecordBuilder struct {
	// Depth overrides [DefaultMaxDepth] when positive.
	Depth int
}

var _ Builder = (*RecordBuilder)(nil)

// Admit implements Builder.
func (b *RecordBuilder) Admit(tag string) error {
	return errors.ValidateTypeTag(tag)
}

// Build implements Builder.
func (b *RecordBuilder) Build(tag string, props *Props) (any, error) {
	if props == nil {
		props = NewProps()
	}
	return &Record{Type: tag, Props: props}, nil
}

// MaxDepth implements Builder.
func (b *RecordBuilder) MaxDepth() int {
	if b.Depth > 0 {
		return b.Depth
	}
	return DefaultMaxDepth
}

// CheckDepth returns a DEPTH_EXCEEDED error when depth is beyond b's limit.
func CheckDepth(b Builder, depth int) error {
	if limit := b.MaxDepth(); limit > 0 && depth > limit {
		return errors.New(errors.ErrCodeDepthExceeded, "nesting depth %d exceeds limit %d", depth, limit)
	}
	return nil
}
