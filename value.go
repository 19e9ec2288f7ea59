// FILE: lixenwraith/confbind/value.go
package confbind

import "iter"

type valueState uint8

const (
	stateAbsent valueState = iota
	stateNull
	statePresent
)

// Value is a raw configuration string that distinguishes absence, explicit null and a present string.
// The zero Value is absent.
type Value struct {
	str   string
	state valueState
}

// Absent returns a value signalling that a key is unknown.
func Absent() Value { return Value{} }

// Null returns a present value that explicitly holds no string.
func Null() Value { return Value{state: stateNull} }

// Of returns a present string value. The empty string is a valid present value.
func Of(s string) Value { return Value{str: s, state: statePresent} }

// IsPresent reports whether the value was found, including explicit null.
func (v Value) IsPresent() bool { return v.state != stateAbsent }

// IsNull reports whether the value is an explicit null.
func (v Value) IsNull() bool { return v.state == stateNull }

// Get returns the string and whether a non-null string is held.
func (v Value) Get() (string, bool) { return v.str, v.state == statePresent }

// String returns the held string, or "" for absent and null values.
func (v Value) String() string { return v.str }

// Attributes carry per-property metadata to sources and converters.
type Attributes map[string]string

// Source is a key/value store consulted during resolution.
// Implementations must be safe for concurrent, repeated reads.
type Source interface {
	Lookup(key string, attrs Attributes) Value
}

// IterableSource is a source that can enumerate its full contents.
type IterableSource interface {
	Source
	Entries() iter.Seq2[string, Value]
}

// SourceFunc adapts a function to Source.
type SourceFunc func(key string, attrs Attributes) Value

func (f SourceFunc) Lookup(key string, attrs Attributes) Value { return f(key, attrs) }
