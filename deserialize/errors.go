package deserialize

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/pasqal-io/graphdasse/deserialize/metadata"
	"github.com/pasqal-io/graphdasse/deserialize/shared"
	"github.com/pasqal-io/graphdasse/validation"
)

// A step from a node to one of its children.
type Step struct {
	// The key, for mappings.
	Key string

	// The index, for sequences, if `IsIndex`.
	Index   int
	IsIndex bool
}

func Key(key string) Step {
	return Step{Key: key}
}

func Index(index int) Step {
	return Step{Index: index, IsIndex: true}
}

func (s Step) String() string {
	if s.IsIndex {
		return fmt.Sprint("[", s.Index, "]")
	}
	return fmt.Sprint(".", s.Key)
}

// The path from the root of the input to a node.
type Path []Step

func (p Path) String() string {
	var builder strings.Builder
	for _, step := range p {
		builder.WriteString(step.String())
	}
	return builder.String()
}

// Append a step, without sharing storage with `p`.
func (p Path) with(step Step) Path {
	result := make(Path, len(p), len(p)+1)
	copy(result, p)
	return append(result, step)
}

// The error returned by all deserializers.
//
// Use `errors.As` to find out what went wrong, e.g. a
// `*MissingRequiredArgumentError`.
type Error struct {
	// A human-readable root, e.g. the name of the endpoint or of the type.
	Root string

	// Where the failure happened.
	Path Path

	// What happened.
	Err error
}

// Where the failure happened, e.g. "Book.reviews[1].date".
func (e *Error) Where() string {
	return e.Root + e.Path.String()
}

func (e *Error) Error() string {
	return fmt.Sprintf("at %s:\n\t * %s", e.Where(), e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// A required constructor argument is missing from the input.
type MissingRequiredArgumentError struct {
	Type  reflect.Type
	Param string
}

func (e *MissingRequiredArgumentError) Error() string {
	return fmt.Sprintf("missing value for required parameter %q of %s", e.Param, typeName(e.Type))
}

// An element of a collection could not be normalized.
type ElementNormalizationError struct {
	Index int
	Err   error
}

func (e *ElementNormalizationError) Error() string {
	return fmt.Sprintf("invalid element %d:\n\t * %s", e.Index, e.Err)
}

func (e *ElementNormalizationError) Unwrap() error {
	return e.Err
}

// A string could not be parsed as a date.
type DateFormatError struct {
	Value   string
	Layouts []string
	Err     error
}

func (e *DateFormatError) Error() string {
	return fmt.Sprintf("invalid date %q, expected format %s", e.Value, strings.Join(e.Layouts, " or "))
}

func (e *DateFormatError) Unwrap() error {
	return e.Err
}

// The input nests deeper than allowed.
type DepthExceededError struct {
	Limit int
}

func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("input nests deeper than %d levels", e.Limit)
}

// The input has the wrong shape for the target type, e.g. a sequence where a
// string is expected.
type ShapeMismatchError struct {
	Expected reflect.Type
	Got      shared.Kind
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("expected %s, got %s", describeType(e.Expected), e.Got)
}

func (e *ShapeMismatchError) Is(target error) bool {
	return target == ErrNoNormalizer //nolint:errorlint
}

// No normalizer supports this (node, type) pair.
var ErrNoNormalizer = errors.New("no normalizer for this value")

// A scalar has the right shape but cannot be converted, e.g. "abc" into an int
// or 300 into an int8.
type InvalidValueError struct {
	Expected reflect.Type
	Value    any
	Err      error
}

func (e *InvalidValueError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid value %v, expected %s:\n\t * %s", e.Value, describeType(e.Expected), e.Err)
	}
	return fmt.Sprintf("invalid value %v, expected %s", e.Value, describeType(e.Expected))
}

func (e *InvalidValueError) Unwrap() error {
	return e.Err
}

// An injected argument cannot be passed to the constructor.
type InvalidInjectionError struct {
	Type     reflect.Type
	Param    string
	Expected reflect.Type
	Got      reflect.Type
}

func (e *InvalidInjectionError) Error() string {
	return fmt.Sprintf("argument %q injected for %s has type %s, expected %s", e.Param, typeName(e.Type), describeType(e.Got), describeType(e.Expected))
}

// An error that arises because of a bug in user code: a constructor,
// a setter, an `Initializer` or an `UnmarshalNode`.
type CustomDeserializerError struct {
	// The operation that failed, e.g. "constructor", "setter", "initializer".
	Operation string

	// The type we were building.
	Structure string

	// The underlying error.
	Wrapped error
}

// Return the user-facing message.
func (e CustomDeserializerError) Error() string {
	return fmt.Sprintf("%s of %s failed:\n\t * %s", e.Operation, e.Structure, e.Wrapped)
}

// Unwrap the error.
func (e CustomDeserializerError) Unwrap() error {
	return e.Wrapped
}

var _ error = CustomDeserializerError{} //nolint:exhaustruct

// A short name for the kind of an error, used as a metrics label.
func errorKind(err error) string {
	var (
		syntax     *shared.SyntaxError
		missing    *MissingRequiredArgumentError
		date       *DateFormatError
		depth      *DepthExceededError
		shape      *ShapeMismatchError
		value      *InvalidValueError
		injection  *InvalidInjectionError
		validating validation.Error
		custom     CustomDeserializerError
		element    *ElementNormalizationError
	)
	switch {
	case errors.As(err, &syntax):
		return "syntax"
	case errors.Is(err, metadata.ErrMetadata):
		return "metadata"
	case errors.As(err, &missing):
		return "missing_argument"
	case errors.As(err, &date):
		return "date_format"
	case errors.As(err, &depth):
		return "depth_exceeded"
	case errors.As(err, &shape):
		return "shape_mismatch"
	case errors.As(err, &value):
		return "invalid_value"
	case errors.As(err, &injection):
		return "invalid_injection"
	case errors.As(err, &validating):
		return "validation"
	case errors.As(err, &custom):
		return "custom"
	case errors.As(err, &element):
		return "element"
	default:
		return "other"
	}
}

// Return a (mostly) human-readable type name for a Go type.
//
// This type name is used for user error messages.
func typeName(typ reflect.Type) string {
	if typ == nil {
		return "<nil>"
	}
	fullName := typ.Name()
	if fullName == "" {
		return typ.String()
	}
	pkgName := fmt.Sprint(typ.PkgPath(), ".")
	return strings.ReplaceAll(fullName, pkgName, "")
}

// Like `typeName`, but also readable for composite types, e.g. "[]Review".
func describeType(typ reflect.Type) string {
	if typ == nil {
		return "<nil>"
	}
	switch typ.Kind() {
	case reflect.Pointer:
		return "*" + describeType(typ.Elem())
	case reflect.Slice:
		return "[]" + describeType(typ.Elem())
	case reflect.Array:
		return "[" + strconv.Itoa(typ.Len()) + "]" + describeType(typ.Elem())
	case reflect.Map:
		return "map[" + describeType(typ.Key()) + "]" + describeType(typ.Elem())
	default:
		return typeName(typ)
	}
}
