// Type metadata: how the fields and constructor parameters of a Go type map
// to keys of the input.
//
// The deserializer only consumes `Descriptor`s, through a `Resolver`. How the
// metadata is declared is up to the resolver. `ReflectResolver` combines
// explicit declarations (`Declaration`, `Declarer`) with what it can infer
// from struct fields, tags and setters.
package metadata

import (
	"fmt"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/pasqal-io/graphdasse/assertions/initialized"
)

// A constructor parameter.
type Param struct {
	// The key used to look the value up in the input (or in injected arguments).
	Name string

	// The type to build. If left nil in a `Declaration`, inferred from the
	// constructor signature.
	Type reflect.Type

	// For collections, the type of elements, if it differs from `Type.Elem()`,
	// e.g. `Review` for a `[]any` parameter.
	Elem reflect.Type

	// If true, the input may omit this parameter.
	Optional bool

	// The value used if the input omits this parameter. Setting a
	// default makes the parameter optional.
	Default any
}

// A field, assigned after construction.
type Field struct {
	// The key used to look the value up in the input.
	Name string

	// The Go name of the backing struct field, "" for setter-only fields.
	GoName string

	// The index of the backing struct field, as per `reflect.Value.FieldByIndex`.
	Index []int

	// The type to build.
	Type reflect.Type

	// If true, `Type` is a slice or array.
	IsCollection bool

	// For collections, the type of elements to build.
	Elem reflect.Type

	// If true, the value is stored as decoded, without conversion.
	Untyped bool

	// The name of a method of `*T` used to assign this field, "" to assign
	// the struct field directly.
	Setter string

	// The value used if the input omits this field, if `HasDefault`.
	Default    any
	HasDefault bool
}

// The resolved shape of a type. Immutable once built.
type Descriptor struct {
	Type   reflect.Type
	Name   string
	Params []Param
	Fields []Field

	// The constructor, invalid if we construct from the zero value.
	constructor    reflect.Value
	returnsPointer bool
	returnsError   bool

	paramsByName map[string]int
	fieldsByName map[string]int
	witness      initialized.IsInitialized
}

// Whether values are built by a constructor rather than from the zero value.
func (d *Descriptor) HasConstructor() bool {
	d.witness.Assert()
	return d.constructor.IsValid()
}

// Lookup a constructor parameter by name.
func (d *Descriptor) Param(name string) (*Param, bool) {
	d.witness.Assert()
	index, ok := d.paramsByName[name]
	if !ok {
		return nil, false
	}
	return &d.Params[index], true
}

// Lookup a field by name.
func (d *Descriptor) Field(name string) (*Field, bool) {
	d.witness.Assert()
	index, ok := d.fieldsByName[name]
	if !ok {
		return nil, false
	}
	return &d.Fields[index], true
}

// Build a new instance from constructor arguments, in the order of `Params`.
//
// Returns a pointer to the instance.
func (d *Descriptor) Construct(args []reflect.Value) (reflect.Value, error) {
	d.witness.Assert()
	if !d.constructor.IsValid() {
		if len(args) != 0 {
			return reflect.Value{}, errors.AssertionFailedf("%s has no constructor but received %d arguments", d.Name, len(args))
		}
		return reflect.New(d.Type), nil
	}
	if len(args) != len(d.Params) {
		return reflect.Value{}, errors.AssertionFailedf("constructor of %s expects %d arguments, got %d", d.Name, len(d.Params), len(args))
	}
	out := d.constructor.Call(args)
	if d.returnsError {
		if failure, ok := out[1].Interface().(error); ok && failure != nil {
			return reflect.Value{}, failure
		}
	}
	result := out[0]
	if d.returnsPointer {
		if result.IsNil() {
			return reflect.Value{}, errors.Newf("constructor of %s returned nil", d.Name)
		}
		return result, nil
	}
	ptr := reflect.New(d.Type)
	ptr.Elem().Set(result)
	return ptr, nil
}

// Assign a field of an instance, through its setter if it has one.
//
// `instance` is a pointer, as returned by `Construct`.
func (d *Descriptor) Assign(instance reflect.Value, field *Field, value reflect.Value) error {
	d.witness.Assert()
	if field.Setter != "" {
		method := instance.MethodByName(field.Setter)
		arg, err := fit(value, method.Type().In(0))
		if err != nil {
			return errors.Wrapf(err, "cannot assign %s.%s", d.Name, field.Name)
		}
		out := method.Call([]reflect.Value{arg})
		if len(out) == 1 {
			if failure, ok := out[0].Interface().(error); ok && failure != nil {
				return failure
			}
		}
		return nil
	}
	slot := instance.Elem().FieldByIndex(field.Index)
	arg, err := fit(value, slot.Type())
	if err != nil {
		return errors.Wrapf(err, "cannot assign %s.%s", d.Name, field.Name)
	}
	slot.Set(arg)
	return nil
}

// Make `value` fit into a slot of type `typ`.
func fit(value reflect.Value, typ reflect.Type) (reflect.Value, error) {
	if !value.IsValid() {
		return reflect.Zero(typ), nil
	}
	if value.Type().AssignableTo(typ) {
		return value, nil
	}
	if value.Type().ConvertibleTo(typ) {
		return value.Convert(typ), nil
	}
	return reflect.Value{}, errors.Newf("a %s does not fit in a %s", value.Type(), typ)
}

// Check whether two descriptors have the same shape.
//
// Constructors are compared by presence only.
func Equivalent(a, b *Descriptor) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.HasConstructor() == b.HasConstructor() && cmp.Equal(a, b, equivalenceOptions...)
}

// Describe the differences between two descriptors, for diagnostics.
func Diff(a, b *Descriptor) string {
	return cmp.Diff(a, b, equivalenceOptions...)
}

var equivalenceOptions = []cmp.Option{
	cmpopts.IgnoreUnexported(Descriptor{}), //nolint:exhaustruct
	cmp.Comparer(func(a, b reflect.Type) bool {
		return a == b
	}),
}

// ----- Errors

// Any error caused by metadata that cannot be resolved. This is a
// programming error, it is never caused by the input.
var ErrMetadata = errors.New("invalid type metadata")

// A type cannot be resolved.
type MetadataError struct {
	Type   reflect.Type
	Reason string
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("cannot resolve metadata for %s: %s", typeName(e.Type), e.Reason)
}

func (e *MetadataError) Is(target error) bool {
	return target == ErrMetadata //nolint:errorlint
}

func newMetadataError(typ reflect.Type, format string, args ...any) error {
	return &MetadataError{
		Type:   typ,
		Reason: fmt.Sprintf(format, args...),
	}
}

// A collection does not tell us the type of its elements.
type AmbiguousCollectionElementError struct {
	Type reflect.Type

	// The field or parameter.
	Member string

	// The type of the collection, e.g. `[]any`.
	Collection reflect.Type
}

func (e *AmbiguousCollectionElementError) Error() string {
	return fmt.Sprintf("cannot resolve metadata for %s: collection %s has type %s, please declare its element type", typeName(e.Type), e.Member, e.Collection)
}

func (e *AmbiguousCollectionElementError) Is(target error) bool {
	return target == ErrMetadata //nolint:errorlint
}

// Return a (mostly) human-readable type name for a Go type.
func typeName(typ reflect.Type) string {
	if typ == nil {
		return "<nil>"
	}
	if typ.Name() != "" {
		return typ.Name()
	}
	return typ.String()
}
