package deserialize

import (
	"encoding"
	"reflect"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/pasqal-io/graphdasse/deserialize/metadata"
	"github.com/pasqal-io/graphdasse/deserialize/shared"
	"github.com/pasqal-io/graphdasse/validation"
)

var (
	timeType            = reflect.TypeOf(time.Time{})
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	unmarshalNodeType   = reflect.TypeOf((*shared.UnmarshalNode)(nil)).Elem()
)

// Whether values of `typ` are read from text rather than built field by
// field, e.g. `time.Time` or `uuid.UUID`.
func isTextual(typ reflect.Type) bool {
	return typ == timeType || reflect.PointerTo(typ).Implements(textUnmarshalerType)
}

// ----- Custom unmarshalers

// Delegates to types whose pointer implements `shared.UnmarshalNode`.
type NodeUnmarshalerNormalizer struct{}

func (NodeUnmarshalerNormalizer) Name() string {
	return "node-unmarshaler"
}

func (NodeUnmarshalerNormalizer) Supports(_ shared.Node, typ reflect.Type) bool {
	return typ.Kind() != reflect.Pointer && reflect.PointerTo(typ).Implements(unmarshalNodeType)
}

func (NodeUnmarshalerNormalizer) Normalize(_ *Context, node shared.Node, typ reflect.Type) (reflect.Value, error) {
	ptr := reflect.New(typ)
	unmarshaler, _ := ptr.Interface().(shared.UnmarshalNode)
	if err := unmarshaler.UnmarshalNode(node); err != nil {
		return reflect.Value{}, CustomDeserializerError{
			Operation: "UnmarshalNode",
			Structure: typeName(typ),
			Wrapped:   err,
		}
	}
	return ptr.Elem(), nil
}

// ----- Collections

// Builds slices and arrays from sequences, element by element.
//
// With `Options.Parallelism` > 1, elements are normalized concurrently. The
// result is the same, including which error is reported.
type ArrayNormalizer struct{}

func (ArrayNormalizer) Name() string {
	return "array"
}

func (ArrayNormalizer) Supports(node shared.Node, typ reflect.Type) bool {
	if typ.Kind() != reflect.Slice && typ.Kind() != reflect.Array {
		return false
	}
	// A query value is both a string and a list, e.g. `uuid.UUID` is an
	// array but reads from its text.
	if node.Kind() == shared.KindString && isTextual(typ) {
		return false
	}
	_, ok := node.AsSequence()
	return ok
}

func (ArrayNormalizer) Normalize(ctx *Context, node shared.Node, typ reflect.Type) (reflect.Value, error) {
	elements, _ := node.AsSequence()
	elemType := ctx.Elem(typ)

	var result reflect.Value
	if typ.Kind() == reflect.Array {
		if len(elements) != typ.Len() {
			return reflect.Value{}, &InvalidValueError{
				Expected: typ,
				Value:    len(elements),
				Err:      errors.Newf("expected exactly %d elements", typ.Len()),
			}
		}
		result = reflect.New(typ).Elem()
	} else {
		result = reflect.MakeSlice(typ, len(elements), len(elements))
	}

	normalizeAt := func(i int) error {
		value, err := ctx.Normalize(Index(i), elements[i], elemType)
		if err != nil {
			return err
		}
		result.Index(i).Set(value)
		return nil
	}

	if ctx.session.parallelism <= 1 || len(elements) <= 1 {
		for i := range elements {
			if err := normalizeAt(i); err != nil {
				return reflect.Value{}, elementError(i, err)
			}
		}
		return result, nil
	}

	// Each goroutine writes to its own slot. We keep all errors to report
	// the one with the lowest index, as a sequential run would.
	failures := make([]error, len(elements))
	var group errgroup.Group
	group.SetLimit(ctx.session.parallelism)
	for i := range elements {
		group.Go(func() error {
			failures[i] = normalizeAt(i)
			return nil
		})
	}
	_ = group.Wait()
	for i, err := range failures {
		if err != nil {
			return reflect.Value{}, elementError(i, err)
		}
	}
	return result, nil
}

// Record which element failed, keeping the location of the failure.
func elementError(index int, err error) error {
	var located *Error
	if errors.As(err, &located) {
		return &Error{
			Root: located.Root,
			Path: located.Path,
			Err: &ElementNormalizationError{
				Index: index,
				Err:   located.Err,
			},
		}
	}
	return &ElementNormalizationError{
		Index: index,
		Err:   err,
	}
}

// Builds `map[string]T` from mappings.
type DictionaryNormalizer struct{}

func (DictionaryNormalizer) Name() string {
	return "dictionary"
}

func (DictionaryNormalizer) Supports(node shared.Node, typ reflect.Type) bool {
	if typ.Kind() != reflect.Map || typ.Key().Kind() != reflect.String {
		return false
	}
	_, ok := node.AsMapping()
	return ok
}

func (DictionaryNormalizer) Normalize(ctx *Context, node shared.Node, typ reflect.Type) (reflect.Value, error) {
	mapping, _ := node.AsMapping()
	keys := mapping.Keys()
	result := reflect.MakeMapWithSize(typ, len(keys))
	for _, key := range keys {
		child, _ := mapping.Lookup(key)
		value, err := ctx.Normalize(Key(key), child, typ.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		result.SetMapIndex(reflect.ValueOf(key).Convert(typ.Key()), value)
	}
	return result, nil
}

// ----- Strings with a format

// The layout used to parse dates, e.g. "2004-02-12T15:19:21+00:00".
//
// Unlike `time.RFC3339`, it formats UTC as "+00:00", so dates written with
// this layout read back to the exact same string.
const DateTimeLayout = "2006-01-02T15:04:05-07:00"

// Parses `time.Time` from strings.
type DateTimeNormalizer struct {
	// The layouts to try, in order.
	Layouts []string
}

// A date normalizer accepting `layouts`, by default `DateTimeLayout` then
// `time.RFC3339Nano`.
func NewDateTimeNormalizer(layouts ...string) DateTimeNormalizer {
	if len(layouts) == 0 {
		layouts = []string{DateTimeLayout, time.RFC3339Nano}
	}
	return DateTimeNormalizer{Layouts: layouts}
}

func (DateTimeNormalizer) Name() string {
	return "datetime"
}

func (DateTimeNormalizer) Supports(node shared.Node, typ reflect.Type) bool {
	return typ == timeType && node.Kind() == shared.KindString
}

func (n DateTimeNormalizer) Normalize(_ *Context, node shared.Node, _ reflect.Type) (reflect.Value, error) {
	source, _ := node.Interface().(string)
	var lastErr error
	for _, layout := range n.Layouts {
		parsed, err := time.Parse(layout, source)
		if err == nil {
			return reflect.ValueOf(parsed), nil
		}
		lastErr = err
	}
	return reflect.Value{}, &DateFormatError{
		Value:   source,
		Layouts: n.Layouts,
		Err:     lastErr,
	}
}

// Delegates to types whose pointer implements `encoding.TextUnmarshaler`,
// e.g. `uuid.UUID`.
type TextNormalizer struct{}

func (TextNormalizer) Name() string {
	return "text"
}

func (TextNormalizer) Supports(node shared.Node, typ reflect.Type) bool {
	return node.Kind() == shared.KindString &&
		typ.Kind() != reflect.Pointer &&
		reflect.PointerTo(typ).Implements(textUnmarshalerType)
}

func (TextNormalizer) Normalize(_ *Context, node shared.Node, typ reflect.Type) (reflect.Value, error) {
	source, _ := node.Interface().(string)
	ptr := reflect.New(typ)
	unmarshaler, _ := ptr.Interface().(encoding.TextUnmarshaler)
	if err := unmarshaler.UnmarshalText([]byte(source)); err != nil {
		return reflect.Value{}, &InvalidValueError{
			Expected: typ,
			Value:    source,
			Err:      err,
		}
	}
	return ptr.Elem(), nil
}

// ----- Objects

// Builds structs from mappings, using their `metadata.Descriptor`.
//
// 1. Constructor arguments are taken from injected values, then from the
// input, then from declared defaults.
// 2. Values built without a constructor are initialized (`validation.Initializer`).
// 3. Fields present in the input and not consumed by the constructor are
// assigned, through their setter if they have one.
// 4. Fields absent from the input receive their `default`, if any.
// 5. The value is validated (`validation.Validator`).
//
// Keys that match neither a parameter nor a field are ignored.
type ObjectNormalizer struct{}

func (ObjectNormalizer) Name() string {
	return "object"
}

func (ObjectNormalizer) Supports(node shared.Node, typ reflect.Type) bool {
	if typ.Kind() != reflect.Struct || isTextual(typ) {
		return false
	}
	_, ok := node.AsMapping()
	return ok
}

func (ObjectNormalizer) Normalize(ctx *Context, node shared.Node, typ reflect.Type) (reflect.Value, error) {
	mapping, _ := node.AsMapping()
	descriptor, err := ctx.Resolver().Resolve(typ)
	if err != nil {
		return reflect.Value{}, err
	}

	args, err := constructorArguments(ctx, mapping, descriptor)
	if err != nil {
		return reflect.Value{}, err
	}
	instance, err := descriptor.Construct(args)
	if err != nil {
		ctx.Logger().Error("Constructor failed", "type", descriptor.Name, "path", ctx.Where(), "error", err)
		return reflect.Value{}, CustomDeserializerError{
			Operation: "constructor",
			Structure: descriptor.Name,
			Wrapped:   err,
		}
	}

	if !descriptor.HasConstructor() {
		if initializer, ok := instance.Interface().(validation.Initializer); ok {
			if err := initializer.Initialize(); err != nil {
				ctx.Logger().Error("Internal error during deserialization", "type", descriptor.Name, "error", err)
				return reflect.Value{}, CustomDeserializerError{
					Operation: "initializer",
					Structure: descriptor.Name,
					Wrapped:   err,
				}
			}
		}
	}

	for i := range descriptor.Fields {
		field := &descriptor.Fields[i]
		if _, consumed := descriptor.Param(field.Name); consumed {
			continue
		}
		var value reflect.Value
		if child, ok := mapping.Lookup(field.Name); ok {
			value, err = ctx.NormalizeCollection(Key(field.Name), child, field.Type, field.Elem)
			if err != nil {
				return reflect.Value{}, err
			}
		} else if field.HasDefault {
			value = reflect.ValueOf(field.Default)
		} else {
			continue
		}
		if err := descriptor.Assign(instance, field, value); err != nil {
			return reflect.Value{}, CustomDeserializerError{
				Operation: "setter",
				Structure: descriptor.Name + "." + field.Name,
				Wrapped:   err,
			}
		}
	}

	if validator, ok := instance.Interface().(validation.Validator); ok {
		if err := validator.Validate(); err != nil {
			return reflect.Value{}, validation.WrapError(ctx.Where(), err)
		}
	}
	return instance.Elem(), nil
}

func constructorArguments(ctx *Context, mapping shared.Mapping, descriptor *metadata.Descriptor) ([]reflect.Value, error) {
	args := make([]reflect.Value, len(descriptor.Params))
	for i, param := range descriptor.Params {
		if injected, ok := ctx.Injected(descriptor.Type, param.Name); ok {
			arg, err := injectedArgument(descriptor.Type, param.Name, param.Type, injected)
			if err != nil {
				return nil, err
			}
			args[i] = arg
			continue
		}
		if child, ok := mapping.Lookup(param.Name); ok {
			arg, err := ctx.NormalizeCollection(Key(param.Name), child, param.Type, param.Elem)
			if err != nil {
				return nil, err
			}
			args[i] = arg
			continue
		}
		switch {
		case param.Default != nil:
			args[i] = reflect.ValueOf(param.Default)
		case param.Optional:
			args[i] = reflect.Zero(param.Type)
		default:
			return nil, &MissingRequiredArgumentError{
				Type:  descriptor.Type,
				Param: param.Name,
			}
		}
	}
	return args, nil
}

// ----- Scalars

// Builds booleans, numbers and strings.
//
// Numbers must fit in the target type. Strings are parsed into booleans and
// numbers, which lets query strings fill typed fields.
type ScalarNormalizer struct{}

func (ScalarNormalizer) Name() string {
	return "scalar"
}

func (ScalarNormalizer) Supports(node shared.Node, typ reflect.Type) bool {
	return node.Kind().IsScalar() && node.Kind() != shared.KindNull && shared.LookupParser(typ) != nil
}

func (ScalarNormalizer) Normalize(_ *Context, node shared.Node, typ reflect.Type) (reflect.Value, error) {
	switch raw := node.Interface().(type) {
	case bool:
		if typ.Kind() != reflect.Bool {
			return reflect.Value{}, &InvalidValueError{Expected: typ, Value: raw}
		}
		return reflect.ValueOf(raw).Convert(typ), nil
	case shared.Number:
		return normalizeNumber(raw, typ)
	case string:
		parser := shared.LookupParser(typ)
		parsed, err := (*parser)(raw)
		if err != nil {
			return reflect.Value{}, &InvalidValueError{Expected: typ, Value: raw, Err: err}
		}
		return reflect.ValueOf(parsed).Convert(typ), nil
	default:
		return reflect.Value{}, &ShapeMismatchError{Expected: typ, Got: node.Kind()}
	}
}

func normalizeNumber(number shared.Number, typ reflect.Type) (reflect.Value, error) {
	result := reflect.New(typ).Elem()
	switch typ.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		parsed, err := strconv.ParseInt(number.String(), 10, 64)
		if err != nil || result.OverflowInt(parsed) {
			return reflect.Value{}, &InvalidValueError{Expected: typ, Value: number, Err: err}
		}
		result.SetInt(parsed)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		parsed, err := strconv.ParseUint(number.String(), 10, 64)
		if err != nil || result.OverflowUint(parsed) {
			return reflect.Value{}, &InvalidValueError{Expected: typ, Value: number, Err: err}
		}
		result.SetUint(parsed)
	case reflect.Float32, reflect.Float64:
		parsed, err := number.Float64()
		if err != nil || result.OverflowFloat(parsed) {
			return reflect.Value{}, &InvalidValueError{Expected: typ, Value: number, Err: err}
		}
		result.SetFloat(parsed)
	default:
		return reflect.Value{}, &InvalidValueError{Expected: typ, Value: number}
	}
	return result, nil
}

// ----- Anything

// Stores the raw decoded value in interface-typed targets, e.g. `any`.
type PassthroughNormalizer struct{}

func (PassthroughNormalizer) Name() string {
	return "passthrough"
}

func (PassthroughNormalizer) Supports(_ shared.Node, typ reflect.Type) bool {
	return typ.Kind() == reflect.Interface
}

func (PassthroughNormalizer) Normalize(_ *Context, node shared.Node, typ reflect.Type) (reflect.Value, error) {
	result := reflect.New(typ).Elem()
	raw := node.Interface()
	if raw == nil {
		return result, nil
	}
	value := reflect.ValueOf(raw)
	if !value.Type().AssignableTo(typ) {
		return reflect.Value{}, &InvalidValueError{Expected: typ, Value: raw}
	}
	result.Set(value)
	return result, nil
}

var (
	_ Normalizer = NodeUnmarshalerNormalizer{}
	_ Normalizer = ArrayNormalizer{}
	_ Normalizer = DictionaryNormalizer{}
	_ Normalizer = DateTimeNormalizer{} //nolint:exhaustruct
	_ Normalizer = TextNormalizer{}
	_ Normalizer = ObjectNormalizer{}
	_ Normalizer = ScalarNormalizer{}
	_ Normalizer = PassthroughNormalizer{}
)
