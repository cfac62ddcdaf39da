package deserialize

import (
	"reflect"

	"github.com/pasqal-io/graphdasse/deserialize/shared"
)

// A strategy to turn a node into a value of a given type.
type Normalizer interface {
	// A short name, for logs.
	Name() string

	// Whether this normalizer can build a `typ` from `node`.
	//
	// Must not have side effects.
	Supports(node shared.Node, typ reflect.Type) bool

	// Build a value of type `typ` (or assignable to `typ`) from `node`.
	//
	// Children are normalized through `ctx.Normalize`.
	Normalize(ctx *Context, node shared.Node, typ reflect.Type) (reflect.Value, error)
}

// An ordered list of normalizers. The first normalizer that supports a
// (node, type) pair handles it.
//
// A `Registry` is immutable once built and may be shared.
type Registry struct {
	normalizers []Normalizer
}

func NewRegistry(normalizers ...Normalizer) *Registry {
	return &Registry{
		normalizers: append([]Normalizer{}, normalizers...),
	}
}

// The registry used when `Options.Registry` is nil.
func DefaultRegistry(dateTimeLayouts ...string) *Registry {
	return NewRegistry(DefaultNormalizers(dateTimeLayouts...)...)
}

// The built-in normalizers, in priority order.
//
//   - `dateTimeLayouts` layouts accepted for `time.Time`, defaults to
//     `DateTimeLayout` then `time.RFC3339Nano`.
func DefaultNormalizers(dateTimeLayouts ...string) []Normalizer {
	return []Normalizer{
		NodeUnmarshalerNormalizer{},
		ArrayNormalizer{},
		NewDateTimeNormalizer(dateTimeLayouts...),
		TextNormalizer{},
		ObjectNormalizer{},
		DictionaryNormalizer{},
		ScalarNormalizer{},
		PassthroughNormalizer{},
	}
}

// A copy of this registry with `extra` normalizers tried before the others.
func (r *Registry) Prepend(extra ...Normalizer) *Registry {
	return NewRegistry(append(append([]Normalizer{}, extra...), r.normalizers...)...)
}

// A copy of this registry with `extra` normalizers tried after the others.
func (r *Registry) Append(extra ...Normalizer) *Registry {
	return NewRegistry(append(append([]Normalizer{}, r.normalizers...), extra...)...)
}

// The normalizers, in priority order.
func (r *Registry) Normalizers() []Normalizer {
	return append([]Normalizer{}, r.normalizers...)
}

// Find the first normalizer that supports a (node, type) pair, nil if none.
func (r *Registry) Lookup(node shared.Node, typ reflect.Type) Normalizer {
	for _, normalizer := range r.normalizers {
		if normalizer.Supports(node, typ) {
			return normalizer
		}
	}
	return nil
}
