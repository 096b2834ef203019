// Package pkg provides the libraries behind shapeserial, an object-graph
// serialization engine.
//
// # Overview
//
// Go values of registered types are written as tagged records in JSON,
// JSONC, YAML or CBOR and read back with shared identities intact. Untrusted
// input is read in safe mode, which refuses to instantiate any type outside
// an allow-list. The pkg directory is organized into three areas:
//
//  1. Engine: [schema], [identity], [wire], [format] and [serial]
//  2. Document types: [geom] and [diagram]
//  3. Infrastructure: [config], [logging], [errors], [observability],
//     [store], [api] and [render]
//
// # Architecture
//
// The data flow of a dump:
//
//	Go value
//	    ↓
//	[serial] session (effective schema via [schema], IDs numbered per dump)
//	    ↓
//	[wire] tree (records, props, maps, ID references)
//	    ↓
//	[format] engine (json, jsonc, yaml, cbor)
//	    ↓
//	bytes
//
// A load runs the same path backwards. Engines hand every tag to the
// session before reading the record's properties, which is where safe mode
// rejects disallowed types.
//
// # Quick Start
//
//	import (
//	    "github.com/matzehuels/shapeserial/pkg/diagram"
//	    "github.com/matzehuels/shapeserial/pkg/geom"
//	    "github.com/matzehuels/shapeserial/pkg/serial"
//	)
//
//	a := diagram.NewBox("a", geom.Point{}, geom.Size{W: 10, H: 10})
//	b := diagram.NewBox("b", geom.Point{X: 40}, geom.Size{W: 10, H: 10})
//	d := diagram.New("example").Add(a, b)
//	d.Connect(a, b)
//
//	data, err := serial.Serialize(ctx, d, serial.Format("yaml"), serial.Pretty(true))
//	v, err := serial.DeserializeSafe(ctx, data, serial.Format("yaml"))
//
// # Command Line
//
// The shapeserial binary in cmd/shapeserial wraps these packages:
//
//	shapeserial convert diagram.json --to yaml
//	shapeserial inspect diagram.yaml --graph svg -o refs.svg
//	shapeserial store put diagrams/a diagram.json
//	shapeserial serve --addr :8080
package pkg
