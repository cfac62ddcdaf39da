// Abstractions shared between the deserialization engine and its encoding
// drivers.
//
// Drivers (json, yaml, kvlist) turn raw text into a tree of `Node`. The
// engine never looks at text directly, only at `Node`.
package shared

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	"github.com/cockroachdb/errors"
)

// The shape of a decoded node.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSequence
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Is this a scalar kind?
func (k Kind) IsScalar() bool {
	return k != KindSequence && k != KindMapping
}

// A number, kept in its textual form so that we never lose precision
// before we know the target type.
type Number = json.Number

// A node in a decoded tree.
//
// We use this type instead of raw type conversions to decrease the risk
// of confusion whenever manipulating `any` and to allow drivers to expose
// values that have more than one reasonable shape (e.g. a single query
// parameter is both a string and a list of one string).
//
// Nodes are immutable once decoded.
type Node interface {
	Kind() Kind
	AsMapping() (Mapping, bool)
	AsSequence() ([]Node, bool)

	// The raw value, as plain Go data: nil, bool, Number, string,
	// []any or map[string]any.
	Interface() any
}

// An ordered mapping.
//
// Keys are unique within a mapping. `Keys()` returns them in input order.
type Mapping interface {
	Lookup(key string) (Node, bool)
	Keys() []string
	AsNode() Node
}

// The maximal nesting accepted by drivers while building a tree.
//
// The engine has its own (usually much lower) limit, this one only protects
// the decoders.
const MaxNesting = 10_000

// Returned by drivers when the input nests deeper than `MaxNesting`.
var ErrNestingTooDeep = errors.New("input nesting is too deep")

// An encoding driver, e.g. JSON.
type Driver interface {
	// A human-readable name, e.g. "json".
	Name() string

	// Decode raw text into a tree.
	//
	// Malformed input MUST be reported as a `*SyntaxError`.
	Decode(source []byte) (Node, error)
}

// Malformed input text.
type SyntaxError struct {
	// The driver that rejected the input.
	Driver string

	// Byte offset of the error, if known, -1 otherwise.
	Offset int

	Wrapped error
}

func (e *SyntaxError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("invalid %s input at offset %d:\n\t * %s", e.Driver, e.Offset, e.Wrapped)
	}
	return fmt.Sprintf("invalid %s input:\n\t * %s", e.Driver, e.Wrapped)
}

func (e *SyntaxError) Unwrap() error {
	return e.Wrapped
}

// A type that knows how to build itself from a node.
//
// Implement it on the pointer type to take over deserialization of a type.
type UnmarshalNode interface {
	UnmarshalNode(Node) error
}

// Strip a root-key wrapper, e.g. turn `{"book": {...}}` into `{...}`.
//
// The engine never does this implicitly.
func Unwrap(node Node, key string) (Node, error) {
	mapping, ok := node.AsMapping()
	if !ok {
		return nil, errors.Newf("cannot unwrap %q, expected a mapping, got %s", key, node.Kind())
	}
	inner, ok := mapping.Lookup(key)
	if !ok {
		return nil, errors.Newf("cannot unwrap %q, no such key", key)
	}
	return inner, nil
}

// A parser for strings into primitive values.
type Parser func(source string) (any, error)

func LookupParser(fieldType reflect.Type) *Parser {
	var result *Parser
	switch fieldType.Kind() {
	case reflect.Bool:
		var p Parser = func(source string) (any, error) {
			return strconv.ParseBool(source) //nolint:wrapcheck
		}
		result = &p
	case reflect.Float32:
		var p Parser = func(source string) (any, error) {
			return strconv.ParseFloat(source, 32) //nolint:wrapcheck
		}
		result = &p
	case reflect.Float64:
		var p Parser = func(source string) (any, error) {
			return strconv.ParseFloat(source, 64) //nolint:wrapcheck
		}
		result = &p
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		bits := fieldType.Bits()
		var p Parser = func(source string) (any, error) {
			return strconv.ParseInt(source, 10, bits) //nolint:wrapcheck
		}
		result = &p
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		bits := fieldType.Bits()
		var p Parser = func(source string) (any, error) {
			return strconv.ParseUint(source, 10, bits) //nolint:wrapcheck
		}
		result = &p
	case reflect.String:
		var p Parser = func(source string) (any, error) {
			return source, nil
		}
		result = &p
	default:
		return nil
	}
	return result
}
