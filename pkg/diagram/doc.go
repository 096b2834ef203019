// Package diagram is a small shape model serialized through package serial.
//
// A [Diagram] holds shapes and the lines connecting them. Every shape owns an
// [identity.ID]; a [Line] stores the IDs of its endpoints rather than the
// shapes themselves, so a shape connected by several lines is written once
// and each line points back at it. After a load, lines resolve their
// endpoints in their finalize hook and rebuild their handles, which are
// never written.
//
// The type hierarchy exercises schema inheritance:
//
//	diagram.Shape  id, position, fill, label
//	diagram.Box    Shape + size, radius
//	diagram.Text   Shape - fill + text
//	diagram.Line   Shape - position + source, target, handles
//
// Importing the package registers these types and [Diagram] in
// [schema.Default].
package diagram
