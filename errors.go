// FILE: lixenwraith/confbind/errors.go
package confbind

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Build-time errors. They are fatal for the given shape and never cached.
var (
	ErrInvalidSchema      = errors.New("invalid configuration schema")
	ErrCycleDetected      = errors.New("configuration cycle detected")
	ErrDuplicateProperty  = errors.New("duplicate configuration property")
	ErrUnrecognizedMember = errors.New("unrecognized configuration member")
	ErrInvalidAttributes  = errors.New("invalid attribute combination")
)

// Resolution-time errors.
var (
	ErrNoApplicableConverter = errors.New("no applicable type converter")
	ErrValueFormat           = errors.New("invalid value format")
	ErrUnknownProperty       = errors.New("unknown property path")
)

// Source errors.
var (
	ErrConfigNotFound = errors.New("configuration file not found")
	ErrCLIParse       = errors.New("failed to parse command-line arguments")
	ErrValueSize      = fmt.Errorf("value size exceeds maximum %d bytes", MaxValueSize)
)

// MaxValueSize bounds a single raw value read from the environment or a file.
const MaxValueSize = 1024 * 1024

// CycleError reports the chain of shapes and members that leads back to a shape already being built.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCycleDetected, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycleDetected }

// ConversionError wraps a failure inside a converter.
type ConversionError struct {
	Type      reflect.Type
	Value     string
	Converter string
	Err       error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%s: converter %q cannot convert %q to %v: %v", ErrValueFormat, e.Converter, e.Value, e.Type, e.Err)
}

func (e *ConversionError) Unwrap() []error { return []error{ErrValueFormat, e.Err} }

// mustShape panics on programmer errors: nil or non-struct shapes.
func mustShape(shape reflect.Type) reflect.Type {
	if shape == nil {
		panic("confbind: nil configuration shape")
	}
	for shape.Kind() == reflect.Ptr {
		shape = shape.Elem()
	}
	return shape
}
