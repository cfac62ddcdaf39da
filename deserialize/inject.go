package deserialize

import (
	"reflect"
)

// Values supplied by the caller to constructors, instead of being read from
// the input, e.g. a logger or a database handle.
//
// Injected values take precedence over the input: if a `Book` constructor
// takes a `logger` parameter and a logger is injected for `Book`, any
// "logger" key in the input is ignored.
//
// Register every value before deserializing. An `Injector` may then be shared
// by concurrent deserializations.
type Injector struct {
	arguments map[reflect.Type]map[string]any
}

func NewInjector() *Injector {
	return &Injector{
		arguments: make(map[reflect.Type]map[string]any),
	}
}

// Inject `value` as constructor parameter `param` of `typ`.
//
// Pointer types are normalized to the type they point to.
func (inj *Injector) Register(typ reflect.Type, param string, value any) *Injector {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	byName, ok := inj.arguments[typ]
	if !ok {
		byName = make(map[string]any)
		inj.arguments[typ] = byName
	}
	byName[param] = value
	return inj
}

// Inject `value` as constructor parameter `param` of `T`.
func Inject[T any](inj *Injector, param string, value any) *Injector {
	return inj.Register(reflect.TypeOf((*T)(nil)).Elem(), param, value)
}

// Find the value injected for a parameter.
//
// A nil `Injector` contains nothing.
func (inj *Injector) Lookup(typ reflect.Type, param string) (any, bool) {
	if inj == nil {
		return nil, false
	}
	byName, ok := inj.arguments[typ]
	if !ok {
		return nil, false
	}
	value, ok := byName[param]
	return value, ok
}

// Convert an injected value into a constructor argument.
func injectedArgument(typ reflect.Type, param string, expected reflect.Type, value any) (reflect.Value, error) {
	if value == nil {
		switch expected.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(expected), nil
		default:
			return reflect.Value{}, &InvalidInjectionError{
				Type:     typ,
				Param:    param,
				Expected: expected,
				Got:      nil,
			}
		}
	}
	argument := reflect.ValueOf(value)
	if argument.Type().AssignableTo(expected) {
		return argument, nil
	}
	return reflect.Value{}, &InvalidInjectionError{
		Type:     typ,
		Param:    param,
		Expected: expected,
		Got:      argument.Type(),
	}
}
