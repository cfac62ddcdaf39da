package deserialize

import (
	"log/slog"
	"reflect"

	"github.com/cockroachdb/errors"

	"github.com/pasqal-io/graphdasse/deserialize/metadata"
	"github.com/pasqal-io/graphdasse/deserialize/shared"
)

// The state of one deserialization, shared by all nodes. Read-only once the
// deserialization has started.
type session struct {
	root        string
	registry    *Registry
	resolver    metadata.Resolver
	injector    *Injector
	maxDepth    int
	parallelism int
	logger      *slog.Logger
}

// Where we are in the tree.
//
// Each node gets its own `Context`, so normalizers running in parallel never
// share mutable state.
type Context struct {
	session *session
	path    Path
	depth   int

	// The type of elements, if the collection being normalized declares
	// one that differs from its Go element type.
	elem reflect.Type
}

// The path of the node being normalized.
func (ctx *Context) Path() Path {
	return ctx.path
}

// The human-readable location of the node being normalized, e.g.
// "Book.reviews[1]".
func (ctx *Context) Where() string {
	return ctx.session.root + ctx.path.String()
}

// How many levels below the root we are.
func (ctx *Context) Depth() int {
	return ctx.depth
}

// The resolver used for type metadata.
func (ctx *Context) Resolver() metadata.Resolver {
	return ctx.session.resolver
}

func (ctx *Context) Logger() *slog.Logger {
	return ctx.session.logger
}

// The value injected for parameter `param` of `typ`, if any.
func (ctx *Context) Injected(typ reflect.Type, param string) (any, bool) {
	return ctx.session.injector.Lookup(typ, param)
}

// The type of elements to build for a collection of type `collection`.
func (ctx *Context) Elem(collection reflect.Type) reflect.Type {
	if ctx.elem != nil {
		return ctx.elem
	}
	return collection.Elem()
}

// Normalize a child of the current node.
//
// Errors are returned as an `*Error` located at the deepest node that failed.
func (ctx *Context) Normalize(step Step, node shared.Node, typ reflect.Type) (reflect.Value, error) {
	return ctx.descend(step, nil).normalize(node, typ)
}

// Normalize a child collection whose elements have type `elem`
// (nil to use the element type of `typ`).
func (ctx *Context) NormalizeCollection(step Step, node shared.Node, typ reflect.Type, elem reflect.Type) (reflect.Value, error) {
	return ctx.descend(step, elem).normalize(node, typ)
}

func (ctx *Context) descend(step Step, elem reflect.Type) *Context {
	return &Context{
		session: ctx.session,
		path:    ctx.path.with(step),
		depth:   ctx.depth + 1,
		elem:    elem,
	}
}

// Locate an error at the current node, unless it is already located.
func (ctx *Context) fail(err error) error {
	var located *Error
	if errors.As(err, &located) {
		return err
	}
	return &Error{
		Root: ctx.session.root,
		Path: ctx.path,
		Err:  err,
	}
}

// Normalize the current node into a value of type `typ`.
func (ctx *Context) normalize(node shared.Node, typ reflect.Type) (reflect.Value, error) {
	if ctx.depth > ctx.session.maxDepth {
		return reflect.Value{}, ctx.fail(&DepthExceededError{Limit: ctx.session.maxDepth})
	}
	switch typ.Kind() {
	case reflect.Pointer:
		if node.Kind() == shared.KindNull {
			return reflect.Zero(typ), nil
		}
		// Normalizers that want `*T` receive `T` and we take the address.
		inner, err := ctx.normalize(node, typ.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		if inner.CanAddr() && inner.Type() == typ.Elem() {
			return inner.Addr(), nil
		}
		ptr := reflect.New(typ.Elem())
		ptr.Elem().Set(inner)
		return ptr, nil
	case reflect.Slice, reflect.Map:
		if node.Kind() == shared.KindNull {
			return reflect.Zero(typ), nil
		}
	default:
	}
	normalizer := ctx.session.registry.Lookup(node, typ)
	if normalizer == nil {
		return reflect.Value{}, ctx.fail(&ShapeMismatchError{
			Expected: typ,
			Got:      node.Kind(),
		})
	}
	value, err := normalizer.Normalize(ctx, node, typ)
	if err != nil {
		return reflect.Value{}, ctx.fail(err)
	}
	return value, nil
}
