package serial

import (
	"github.com/matzehuels/shapeserial/pkg/identity"
	"github.com/matzehuels/shapeserial/pkg/wire"
)

// ForSerializer customizes how an object writes its properties. The default
// is [Session.WriteProperties]. Implementations put plain Go values into
// props; the session encodes them afterwards.
type ForSerializer interface {
	ForSerialize(s *Session, props *wire.Props, excluded ...string) error
}

// FromSerializer customizes how a freshly allocated object reads its
// properties. The default is [Session.ReadProperties]. props hold decoded
// values: nested objects are already restored, references are *identity.ID.
type FromSerializer interface {
	FromSerialized(s *Session, props *wire.Props) error
}

// Finalizer is called once per restored object after every object of the
// same load has been restored, in restoration order. It is where references
// to other objects are resolved, see [Session.Owner].
type Finalizer interface {
	FinalizeFromSerialized(s *Session) error
}

// Disabler marks objects that their owner rebuilds on its own. A disabled
// object is left out of the output: as a property it is omitted, as a list
// element or map value it is dropped.
type Disabler interface {
	SerializeDisabled() bool
}

// Owner is implemented by objects that own an identity. Restored owners are
// recorded so that [Session.Owner] can resolve references to them.
type Owner = identity.Owner
