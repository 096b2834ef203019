// Package schema holds the declarative property schemas of serializable types.
//
// A [Type] describes one Go struct type: the tag it is written under, the
// properties it declares, the properties it removes from its parent, and the
// properties only it adds. Properties are explicit accessor pairs built once
// when the type is defined; nothing is looked up by name while encoding or
// decoding.
//
// # Defining types
//
//	var PointType = schema.MustDefine[Point]("geom.Point",
//	    schema.DeclareFields("x", "y"),
//	)
//
//	var LabelType = schema.MustDefine[Label]("diagram.Label",
//	    schema.Extends(ShapeType, func(l *Label) *Shape { return &l.Shape }),
//	    schema.Exclude("fill"),
//	    schema.Add(schema.Prop("text", (*Label).Text, (*Label).SetText)),
//	)
//
// # Effective schema
//
// The effective schema is computed once, at definition time, walking the
// ancestor chain root to leaf. Each level appends its declared and added
// properties not yet present, then removes its excluded names. An excluded
// property only comes back if a more specific level declares it again.
//
// Conflicting definitions (declaring and excluding one name on the same
// level, adding on a root type, excluding a name that is not inherited, a
// field name without a matching struct field) fail with a SCHEMA error from
// [Define]; they are never deferred to the first serialization.
//
// # Registry and allow-list
//
// Every defined type is registered in a [Registry] under its tag. The
// registry is also the safe-mode allow-list: see [Registry.Allowed].
package schema
