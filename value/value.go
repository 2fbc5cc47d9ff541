// Package value defines MCF's immutable, typed, shared-ownership payload
// and its companion type registry and id generator (spec.md §3, §4.6).
package value

import "fmt"

// Value is an immutable typed payload shared by reference. Once published
// through a Store its contents never change; any number of receivers may
// hold the reference until the last one drops it. Concrete value types
// embed Base and implement TypeID.
type Value interface {
	// ID returns the value's identity, set exactly once at creation.
	ID() ID
	// TypeID returns the registered type-id string for this value's
	// concrete type, used by the registry, the recorder and the remote
	// bridge to find the matching Pack/Unpack pair.
	TypeID() string
}

// Base is embedded by concrete value types to satisfy the ID() half of the
// Value interface. It carries no behavior beyond identity: contents belong
// entirely to the embedding type.
type Base struct {
	id ID
}

// NewBase returns a Base stamped with id. Callers obtain id from an
// IDGenerator exactly once, at publication time.
func NewBase(id ID) Base { return Base{id: id} }

// ID implements Value.
func (b Base) ID() ID { return b.id }

// Pack serializes a Value to bytes. Implementations must be pure functions
// of v's contents (spec.md invariant: values are immutable after
// publication, so pack results must be stable for a given id).
type Pack func(v Value) ([]byte, error)

// Unpack deserializes bytes into a Value of a specific registered type.
type Unpack func(data []byte) (Value, error)

// ErrTypeMismatch models spec.md's TypeMismatch error kind. Registry
// lookups never return it (they report only ErrUnknownType), and
// valuestore.GetValue signals a mismatch by returning the zero value and
// false rather than an error.
type ErrTypeMismatch struct {
	Want, Got string
}

func (e *ErrTypeMismatch) Error() string {
	return fmt.Sprintf("value: type mismatch: want %q got %q", e.Want, e.Got)
}

// ErrUnknownType is spec.md's UnknownType error kind: the recorder or
// remote bridge encountered a type-id with no registered Pack/Unpack pair.
type ErrUnknownType struct {
	TypeID string
}

func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("value: unknown type %q", e.TypeID)
}
