// Out of the box, Go json (and other deserializers) can only fill exported
// fields of structs built from their zero value. Domain objects often need
// more: a constructor enforcing invariants, setters, collections of
// objects stored as `[]any`, dates, dependencies (loggers, clients) that
// never come from the input.
//
// This package implements an alternative deserialization, which turns a
// decoded tree (JSON, YAML, query strings) into a graph of typed objects.
//
// # Recommended use
//
// If you have a struct `Book` that you wish to deserialize:
//
//   - declare its constructor and parameters, either by implementing
//     `metadata.Declarer` or with `metadata.Declare`
//
//	func (Book) DeserializationMetadata() metadata.Declaration {
//		return metadata.Declaration{
//			Constructor: NewBook,
//			Params: []metadata.Param{{Name: "logger"}, {Name: "title"}},
//		}
//	}
//
//   - pass dependencies with an `Injector`
//
//	injector := deserialize.NewInjector()
//	deserialize.Inject[Book](injector, "logger", logger)
//
//   - build a deserializer once, use it many times
//
//	deserializer, err := deserialize.MakeDeserializer[Book](deserialize.JSONOptions(""))
//	book, err := deserializer.DeserializeBytes(body, injector)
//
// Same behavior as the standard library:
//   - lower-case field names mean that we NEVER accept external data during deserialization;
//   - enforces `json:"XXXX"` renamings when deserializing JSON;
//   - a field renamed to `json:"-"` will not accept external data during deserialization;
//   - keys that match no field are ignored.
//
// Different behavior:
//   - this library also works for formats other than json, in which case instead of tag `json`,
//     we use a specific tag (e.g. "query" or "yaml");
//   - if a value is built without a constructor and implements `validation.Initializer`, we run
//     the initializer before assigning fields;
//   - if a tag `default:"XXX"` is specified, we use this value when a field is not specified
//     (by opposition, Go would silently insert zero values);
//   - if a field has a setter (tag `setter:"XXX"` or a method `SetField`), we call it instead of
//     assigning the field;
//   - if a data structure supports `validation.Validator`, we run validation during deserialization
//     and fail if validation rejects the value;
//   - dates are parsed as `DateTimeLayout`, which round-trips "+00:00";
//   - we attempt to detect metadata errors early and fail when setting up the deserializer, instead
//     of failing during deserialization.
//
// # Warning
//
// By design, Go will NOT let us assign private fields. If you have a private field, set it
// from a constructor or a setter.
package deserialize

import (
	"log/slog"
	"maps"
	"reflect"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pasqal-io/graphdasse/deserialize/internal"
	"github.com/pasqal-io/graphdasse/deserialize/internal/metrics"
	jsonPkg "github.com/pasqal-io/graphdasse/deserialize/json"
	"github.com/pasqal-io/graphdasse/deserialize/kvlist"
	"github.com/pasqal-io/graphdasse/deserialize/metadata"
	"github.com/pasqal-io/graphdasse/deserialize/shared"
	yamlPkg "github.com/pasqal-io/graphdasse/deserialize/yaml"
)

// -------- Public API --------

// The default limit on nesting, see `Options.MaxDepth`.
const DefaultMaxDepth = 256

// Options for building a deserializer.
//
// See also JSONOptions, YAMLOptions, QueryOptions for reasonable
// default values.
type Options struct {
	// The name of tags used for renamings (e.g. "json").
	//
	// Ignored if you provide a `Resolver`.
	MainTagName string

	// Human-readable information on the nature of data
	// you'll be deserializing with this deserializer.
	//
	// Used for logging and error messages.
	//
	// For instance, if you're deserializing for an endpoint
	// "GET /api/v1/fetch", string "GET /api/v1/fetch" is an
	// acceptable value for RootPath.
	//
	// Optional. If you leave this blank, we use the name of the type.
	RootPath string

	// The driver used to decode values when they are provided as
	// []byte or string.
	Driver shared.Driver

	// The normalizers. If nil, `DefaultRegistry(DateTimeLayouts...)`.
	Registry *Registry

	// Accepted date layouts, ignored if you provide a `Registry`.
	DateTimeLayouts []string

	// Where to find type metadata. If nil, the resolver shared by all
	// deserializers using `MainTagName`, see `DefaultResolver`.
	Resolver metadata.Resolver

	// How deep the input may nest. If 0, `DefaultMaxDepth`.
	MaxDepth int

	// How many elements of a collection may be normalized concurrently.
	// If 0 or 1, collections are normalized sequentially.
	Parallelism int

	// If nil, `slog.Default()`.
	Logger *slog.Logger
}

// A preset fit for consuming JSON.
//
// Params:
//   - root A human-readable root (e.g. the name of the endpoint). Used only
//     for error reporting. `""` is a perfectly acceptable root.
func JSONOptions(root string) Options {
	return Options{
		MainTagName: "json",
		RootPath:    root,
		Driver:      jsonPkg.Driver{},
	}
}

// A preset fit for consuming YAML.
//
// The tag name is `yaml`.
func YAMLOptions(root string) Options {
	return Options{
		MainTagName: "yaml",
		RootPath:    root,
		Driver:      yamlPkg.Driver{},
	}
}

// A preset fit for consuming Queries.
//
// The tag name is `query`.
func QueryOptions(root string) Options {
	return Options{
		MainTagName: "query",
		RootPath:    root,
		Driver:      kvlist.Driver{},
	}
}

// Find a driver by name: "json", "yaml" or "query".
func DriverFor(name string) (shared.Driver, error) {
	switch name {
	case "json":
		return jsonPkg.Driver{}, nil
	case "yaml", "yml":
		return yamlPkg.Driver{}, nil
	case "query", "kvlist":
		return kvlist.Driver{}, nil
	default:
		return nil, errors.Newf("unknown encoding %q, expected json, yaml or query", name)
	}
}

// tagName -> *metadata.ReflectResolver
var defaultResolvers sync.Map

// The resolver used by deserializers that do not specify one.
//
// Declare metadata here for types you cannot modify, before building
// deserializers for them.
func DefaultResolver(tagName string) *metadata.ReflectResolver {
	if resolver, ok := defaultResolvers.Load(tagName); ok {
		return resolver.(*metadata.ReflectResolver) //nolint:forcetypeassert
	}
	resolver, _ := defaultResolvers.LoadOrStore(tagName, metadata.NewReflectResolver(tagName))
	return resolver.(*metadata.ReflectResolver) //nolint:forcetypeassert
}

// Export the deserializer metrics.
func RegisterMetrics(registerer prometheus.Registerer) error {
	return metrics.Register(registerer)
}

// A deserializer for values of type `T`.
//
// A deserializer is immutable and may be used concurrently.
type Deserializer[T any] struct {
	engine *engine
}

// Create a deserializer for `T`.
//
// Fails if the metadata of `T`, or of any type reachable from `T`, cannot be
// resolved.
func MakeDeserializer[T any](options Options) (*Deserializer[T], error) {
	engine, err := makeEngine(options, reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return nil, err
	}
	return &Deserializer[T]{engine: engine}, nil
}

// Decode and deserialize a single value.
//
// `injector` may be nil.
func (d *Deserializer[T]) DeserializeBytes(source []byte, injector *Injector) (*T, error) {
	node, err := d.engine.decode(source)
	if err != nil {
		return nil, err
	}
	return d.DeserializeNode(node, injector)
}

func (d *Deserializer[T]) DeserializeString(source string, injector *Injector) (*T, error) {
	return d.DeserializeBytes([]byte(source), injector)
}

// Deserialize a single value from an already decoded tree.
func (d *Deserializer[T]) DeserializeNode(node shared.Node, injector *Injector) (*T, error) {
	value, err := d.engine.run(node, d.engine.typ, injector)
	if err != nil {
		return nil, err
	}
	result, _ := value.Addr().Interface().(*T)
	return result, nil
}

// Deserialize a single value from plain Go data, e.g. the `map[string]any`
// produced by `encoding/json` or a message broker.
//
// Go maps carry no order, keys are visited in sorted order.
func (d *Deserializer[T]) DeserializeValue(value any, injector *Injector) (*T, error) {
	return d.DeserializeNode(internal.FromInterface(value), injector)
}

// Decode and deserialize a sequence of values.
func (d *Deserializer[T]) DeserializeList(source []byte, injector *Injector) ([]T, error) {
	node, err := d.engine.decode(source)
	if err != nil {
		return nil, err
	}
	value, err := d.engine.run(node, reflect.SliceOf(d.engine.typ), injector)
	if err != nil {
		return nil, err
	}
	result, _ := value.Interface().([]T)
	return result, nil
}

// A deserializer for a type only known at runtime.
type ReflectDeserializer struct {
	engine *engine
}

func MakeReflectDeserializer(options Options, typ reflect.Type) (*ReflectDeserializer, error) {
	engine, err := makeEngine(options, typ)
	if err != nil {
		return nil, err
	}
	return &ReflectDeserializer{engine: engine}, nil
}

// The type this deserializer builds.
func (d *ReflectDeserializer) Type() reflect.Type {
	return d.engine.typ
}

// Decode and deserialize into `out`, which must be settable and have the
// type of this deserializer.
func (d *ReflectDeserializer) DeserializeBytesTo(source []byte, injector *Injector, out *reflect.Value) error {
	node, err := d.engine.decode(source)
	if err != nil {
		return err
	}
	return d.DeserializeNodeTo(node, injector, out)
}

func (d *ReflectDeserializer) DeserializeNodeTo(node shared.Node, injector *Injector, out *reflect.Value) error {
	if !out.CanSet() || out.Type() != d.engine.typ {
		return errors.AssertionFailedf("cannot deserialize a %s into a %s", d.engine.typ, out.Type())
	}
	value, err := d.engine.run(node, d.engine.typ, injector)
	if err != nil {
		return err
	}
	out.Set(value)
	return nil
}

// Build a one-shot deserializer and deserialize `source`.
//
// Prefer `MakeDeserializer` to deserialize many values.
func Deserialize[T any](source []byte, options Options, injector *Injector) (*T, error) {
	deserializer, err := MakeDeserializer[T](options)
	if err != nil {
		return nil, err
	}
	return deserializer.DeserializeBytes(source, injector)
}

// -------- Implementation --------

type engine struct {
	typ         reflect.Type
	root        string
	driver      shared.Driver
	registry    *Registry
	resolver    metadata.Resolver
	maxDepth    int
	parallelism int
	logger      *slog.Logger
}

func makeEngine(options Options, typ reflect.Type) (*engine, error) {
	if options.Driver == nil {
		return nil, errors.New("please specify a driver")
	}
	resolver := options.Resolver
	if resolver == nil {
		if options.MainTagName == "" {
			return nil, errors.New("missing option MainTagName")
		}
		resolver = DefaultResolver(options.MainTagName)
	}
	registry := options.Registry
	if registry == nil {
		registry = DefaultRegistry(options.DateTimeLayouts...)
	}
	maxDepth := options.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	root := options.RootPath
	if root == "" {
		root = typeName(typ)
	}

	if err := precheck(logger, resolver, typ, make(map[reflect.Type]bool)); err != nil {
		return nil, errors.Wrapf(err, "cannot build a deserializer for %s", typeName(typ))
	}
	return &engine{
		typ:         typ,
		root:        root,
		driver:      options.Driver,
		registry:    registry,
		resolver:    resolver,
		maxDepth:    maxDepth,
		parallelism: options.Parallelism,
		logger:      logger,
	}, nil
}

// Resolve the metadata of every struct reachable from `typ`, so that
// metadata errors show up when building the deserializer.
//
// Constructor parameters may be collaborators that are always injected
// (loggers, clients), whose metadata need not resolve. Failures there are
// only logged, and reported if the input ever provides such a value.
func precheck(logger *slog.Logger, resolver metadata.Resolver, typ reflect.Type, visited map[reflect.Type]bool) error {
	if visited[typ] {
		return nil
	}
	visited[typ] = true
	switch typ.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Array, reflect.Map:
		return precheck(logger, resolver, typ.Elem(), visited)
	case reflect.Struct:
	default:
		return nil
	}
	if isTextual(typ) || reflect.PointerTo(typ).Implements(unmarshalNodeType) {
		return nil
	}
	descriptor, err := resolver.Resolve(typ)
	if err != nil {
		return err
	}
	for _, param := range descriptor.Params {
		attempt := maps.Clone(visited)
		if err := precheck(logger, resolver, param.Type, attempt); err != nil {
			logger.Warn("Cannot resolve the metadata of a constructor parameter, it can only be injected",
				"type", descriptor.Name, "param", param.Name, "error", err)
		} else {
			maps.Copy(visited, attempt)
		}
		if param.Elem != nil {
			if err := precheck(logger, resolver, param.Elem, visited); err != nil {
				return err
			}
		}
	}
	for _, field := range descriptor.Fields {
		if err := precheck(logger, resolver, field.Type, visited); err != nil {
			return err
		}
		if field.Elem != nil {
			if err := precheck(logger, resolver, field.Elem, visited); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *engine) decode(source []byte) (shared.Node, error) {
	node, err := e.driver.Decode(source)
	if err == nil {
		return node, nil
	}
	if errors.Is(err, shared.ErrNestingTooDeep) {
		err = &DepthExceededError{Limit: shared.MaxNesting}
	}
	located := &Error{
		Root: e.root,
		Path: nil,
		Err:  err,
	}
	metrics.Deserializations.WithLabelValues(errorKind(located)).Inc()
	e.logger.Debug("Could not decode input", "root", e.root, "driver", e.driver.Name(), "error", err)
	return nil, located
}

func (e *engine) run(node shared.Node, typ reflect.Type, injector *Injector) (reflect.Value, error) {
	ctx := &Context{
		session: &session{
			root:        e.root,
			registry:    e.registry,
			resolver:    e.resolver,
			injector:    injector,
			maxDepth:    e.maxDepth,
			parallelism: e.parallelism,
			logger:      e.logger,
		},
		path:  nil,
		depth: 0,
		elem:  nil,
	}
	value, err := ctx.normalize(node, typ)
	if err != nil {
		metrics.Deserializations.WithLabelValues(errorKind(err)).Inc()
		e.logger.Debug("Deserialization failed", "root", e.root, "error", err)
		return reflect.Value{}, err
	}
	metrics.Deserializations.WithLabelValues(metrics.OutcomeSuccess).Inc()

	// Callers take the address of the result.
	if !value.CanAddr() {
		addressable := reflect.New(typ).Elem()
		addressable.Set(value)
		value = addressable
	}
	return value, nil
}
