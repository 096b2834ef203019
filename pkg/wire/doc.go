// Package wire defines the format-independent value tree exchanged between the
// serialization session and the format engines.
//
// # Overview
//
// Every engine renders and parses the same small set of values:
//
//   - nil, bool, int64, uint64, float64, string, []byte
//   - []any for sequences
//   - *Props for string-keyed mappings (insertion ordered)
//   - *Map for mappings whose keys are not all strings
//   - *Record for tagged objects: {type_tag, properties}
//
// A Record is the wire envelope every non-primitive object is written as:
//
//	{"@type": "geom.Point", "@properties": {"x": 10.0, "y": 90.0}}
//
// Identity references are records too, with the built-in [TagID] tag:
//
//	{"@type": "ID", "@properties": {"ref": 3}}
//
// # Building
//
// Engines never instantiate application types. While parsing they report
// each tag to a [Builder]: [Builder.Admit] as soon as the tag is read (this is
// where the safe-mode gate refuses disallowed classes), then [Builder.Build]
// once the record's properties are complete. [RecordBuilder] builds plain
// [*Record] values for callers that only want the raw tree.
//
// # Assignment
//
// [Assign] and [As] convert decoded values into typed Go destinations
// (numeric widening and narrowing, []any to typed slices, *Props and *Map to
// typed maps, decoded *T into T fields).
package wire
