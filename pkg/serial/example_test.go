package serial_test

import (
	"context"
	"fmt"

	"github.com/matzehuels/shapeserial/pkg/errors"
	"github.com/matzehuels/shapeserial/pkg/schema"
	"github.com/matzehuels/shapeserial/pkg/serial"
)

type Vec struct {
	X, Y float64
}

type Token struct {
	Secret string
}

func init() {
	schema.MustDefine[Vec]("example.Vec", schema.DeclareFields("x", "y"))
	schema.MustDefine[Token]("example.Token", schema.DeclareFields("secret"), schema.Restricted())
}

func Example() {
	ctx := context.Background()

	data, err := serial.Serialize(ctx, Vec{X: 10, Y: 90})
	if err != nil {
		panic(err)
	}
	fmt.Println(string(data))

	v, err := serial.DeserializeAs[Vec](ctx, data)
	if err != nil {
		panic(err)
	}
	fmt.Println(v.X, v.Y)
	// Output:
	// {"@type":"example.Vec","@properties":{"x":10.0,"y":90.0}}
	// 10 90
}

func ExampleDeserializeSafe() {
	ctx := context.Background()
	data := []byte(`{"@type":"example.Token","@properties":{"secret":"s3cr3t"}}`)

	_, err := serial.DeserializeSafe(ctx, data)
	fmt.Println(errors.GetCode(err))
	// Output:
	// DISALLOWED_CLASS
}

func ExampleFormat() {
	data, err := serial.Serialize(context.Background(), Vec{X: 1, Y: 2}, serial.Format("yaml"))
	if err != nil {
		panic(err)
	}
	fmt.Print(string(data))
	// Output:
	// !example.Vec {x: 1.0, y: 2.0}
}
