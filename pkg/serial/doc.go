// Package serial serializes object graphs of registered types and restores
// them, with shared identities intact.
//
// # Overview
//
// A dump walks a Go value and produces a wire tree (see package wire) that a
// format engine renders as JSON, YAML or CBOR. Objects of registered types
// become tagged records holding their effective schema; *identity.ID values
// become ID records numbered by a per-dump reference table. A load does the
// reverse: the engine parses the input and hands every record to this
// package, which instantiates the registered type and assigns its
// properties. Every ID record with the same number resolves to the same
// *identity.ID.
//
//	data, err := serial.Serialize(ctx, diagram, serial.Format("yaml"))
//	v, err := serial.DeserializeSafe(ctx, data, serial.Format("yaml"))
//
// # Sessions
//
// All state of a call lives in a [Session]. Hooks receive the session and
// may serialize or deserialize nested payloads through it; each nested call
// gets its own reference table or restoration map and leaves the outer ones
// untouched. Trust only tightens: a load nested in a safe load is safe.
//
// # Hooks
//
// Types customize their wire form by implementing [ForSerializer],
// [FromSerializer], [Finalizer] and [Disabler]. Without hooks the session
// copies the effective schema through the accessors the type declared.
//
// # Safe loading
//
// [Safe] and [DeserializeSafe] restrict instantiation to the registry's
// allow-list. The check runs as soon as an engine reads a tag, before any
// property of that record is parsed, so a disallowed record never runs a
// constructor or hook.
package serial
