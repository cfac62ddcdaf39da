package metadata

import (
	"log/slog"
	"reflect"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/pasqal-io/graphdasse/assertions/initialized"
	"github.com/pasqal-io/graphdasse/deserialize/internal/metrics"
	"github.com/pasqal-io/graphdasse/deserialize/shared"
	tagsPkg "github.com/pasqal-io/graphdasse/deserialize/tags"
)

// Something that can produce the descriptor of a type.
//
// Implementations MUST be safe for concurrent use and MUST return
// equivalent descriptors when called several times with the same type.
type Resolver interface {
	Resolve(typ reflect.Type) (*Descriptor, error)
}

// Explicit metadata for a type.
//
// Anything declared here takes precedence over what can be inferred by
// reflection.
type Declaration struct {
	// A function building the type, e.g. `NewBook`.
	//
	// It must return `T` or `*T`, optionally followed by an `error`.
	// Leave nil to build values from their zero value.
	Constructor any

	// The parameters of `Constructor`, in order. Go does not expose parameter
	// names, so they must be declared.
	Params []Param

	// Field declarations. A declaration with the `Name` of an inferred
	// field overrides it, any other declaration adds a field, which then
	// needs a `Setter` (or a `GoName` pointing to an exported struct field).
	Fields []Field
}

// A type that declares its own metadata.
//
// The method is called on the zero value, it may be implemented on either
// `T` or `*T`.
type Declarer interface {
	DeserializationMetadata() Declaration
}

var declarerInterface = reflect.TypeOf((*Declarer)(nil)).Elem()

// A resolver based on reflection.
type ReflectResolver struct {
	// The name of tags used for renamings (e.g. "json").
	tagName string

	mutex        sync.RWMutex
	declarations map[reflect.Type]Declaration

	// reflect.Type -> *Descriptor
	cache sync.Map
}

// Create a resolver.
//
//   - `tagName` the tag used for renamings, e.g. "json". Fields without
//     such a tag are looked up by their Go name.
func NewReflectResolver(tagName string) *ReflectResolver {
	return &ReflectResolver{
		tagName:      tagName,
		declarations: make(map[reflect.Type]Declaration),
	}
}

// Declare metadata for a type.
//
// This MUST happen before the type is first resolved, as descriptors are
// never mutated once built.
func (r *ReflectResolver) Declare(typ reflect.Type, declaration Declaration) error {
	typ = indirect(typ)
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, resolved := r.cache.Load(typ); resolved {
		return errors.Newf("type %s has already been resolved, declare its metadata before its first use", typeName(typ))
	}
	r.declarations[typ] = declaration
	return nil
}

// Declare metadata for `T`.
func Declare[T any](r *ReflectResolver, declaration Declaration) error {
	return r.Declare(reflect.TypeOf((*T)(nil)).Elem(), declaration)
}

// Resolve the descriptor of a type, or of the type a pointer points to.
func (r *ReflectResolver) Resolve(typ reflect.Type) (*Descriptor, error) {
	typ = indirect(typ)
	if cached, ok := r.cache.Load(typ); ok {
		metrics.DescriptorCache.WithLabelValues(metrics.CacheHit).Inc()
		return cached.(*Descriptor), nil //nolint:forcetypeassert
	}
	metrics.DescriptorCache.WithLabelValues(metrics.CacheMiss).Inc()

	descriptor, err := r.build(typ)
	if err != nil {
		return nil, err
	}

	// Two goroutines may race to resolve the same type. Both compute the
	// same descriptor, the first one stored wins.
	stored, loaded := r.cache.LoadOrStore(typ, descriptor)
	if loaded {
		previous := stored.(*Descriptor) //nolint:forcetypeassert
		if !Equivalent(previous, descriptor) {
			slog.Warn("Concurrent resolutions produced different descriptors, keeping the first one", "type", typ, "diff", Diff(previous, descriptor))
		}
		return previous, nil
	}
	slog.Debug("Resolved type metadata", "type", typ, "params", len(descriptor.Params), "fields", len(descriptor.Fields))
	return descriptor, nil
}

// Find explicit metadata, if any.
func (r *ReflectResolver) declaration(typ reflect.Type) (Declaration, bool) {
	r.mutex.RLock()
	declaration, ok := r.declarations[typ]
	r.mutex.RUnlock()
	if ok {
		return declaration, true
	}
	if typ.Implements(declarerInterface) {
		declarer, _ := reflect.Zero(typ).Interface().(Declarer)
		return declarer.DeserializationMetadata(), true
	}
	if reflect.PointerTo(typ).Implements(declarerInterface) {
		declarer, _ := reflect.New(typ).Interface().(Declarer)
		return declarer.DeserializationMetadata(), true
	}
	return Declaration{}, false
}

func (r *ReflectResolver) build(typ reflect.Type) (*Descriptor, error) {
	if typ.Kind() != reflect.Struct {
		return nil, newMetadataError(typ, "no usable constructor, only structs can be built from a mapping")
	}
	declaration, _ := r.declaration(typ)

	fields := make([]Field, 0, typ.NumField())
	fields, err := r.inferFields(typ, typ, nil, fields)
	if err != nil {
		return nil, err
	}
	fields, err = r.applyFieldDeclarations(typ, fields, declaration.Fields)
	if err != nil {
		return nil, err
	}

	descriptor := &Descriptor{
		Type:         typ,
		Name:         typeName(typ),
		Fields:       fields,
		paramsByName: make(map[string]int),
		fieldsByName: make(map[string]int, len(fields)),
		witness:      initialized.Make(),
	}
	if err := resolveConstructor(descriptor, declaration); err != nil {
		return nil, err
	}
	for i, field := range fields {
		descriptor.fieldsByName[field.Name] = i
	}
	return descriptor, nil
}

// Collect the exported fields of a struct, flattening embedded structs and
// fields tagged `flatten`.
//
//   - `root` the type being resolved, used to find setters;
//   - `typ` the struct whose fields we are reading;
//   - `prefix` the index of `typ` within `root`.
func (r *ReflectResolver) inferFields(root reflect.Type, typ reflect.Type, prefix []int, fields []Field) ([]Field, error) {
	for i := 0; i < typ.NumField(); i++ {
		structField := typ.Field(i)
		tags, err := tagsPkg.Parse(structField.Tag)
		if err != nil {
			return nil, newMetadataError(root, "invalid tags on field %s: %s", structField.Name, err)
		}
		index := append(append([]int{}, prefix...), i)

		if (structField.Anonymous && structField.Type.Kind() == reflect.Struct) || tags.IsFlattened() {
			if structField.Type.Kind() != reflect.Struct {
				return nil, newMetadataError(root, "field %s is flattened but is not a struct", structField.Name)
			}
			fields, err = r.inferFields(root, structField.Type, index, fields)
			if err != nil {
				return nil, err
			}
			continue
		}

		// By Go convention, private fields never accept external data. They
		// may still be set by a constructor or a declared setter.
		if !structField.IsExported() {
			continue
		}
		name := structField.Name
		if renamed := tags.PublicFieldName(r.tagName); renamed != nil {
			name = *renamed
		}
		if name == "-" {
			continue
		}

		field := Field{
			Name:   name,
			GoName: structField.Name,
			Index:  index,
			Type:   structField.Type,
		}
		if setter := tags.Setter(); setter != nil {
			field.Setter = *setter
		} else if _, ok := reflect.PointerTo(root).MethodByName("Set" + structField.Name); ok {
			field.Setter = "Set" + structField.Name
		}
		if source := tags.Default(); source != nil {
			value, err := parseDefault(structField.Type, *source)
			if err != nil {
				return nil, newMetadataError(root, "invalid default value for field %s: %s", structField.Name, err)
			}
			field.Default = value
			field.HasDefault = true
		}
		fields = append(fields, field)
	}
	return fields, nil
}

func parseDefault(typ reflect.Type, source string) (any, error) {
	parser := shared.LookupParser(typ)
	if parser == nil {
		return nil, errors.Newf("no parser for values of type %s", typ)
	}
	parsed, err := (*parser)(source)
	if err != nil {
		return nil, err
	}
	return reflect.ValueOf(parsed).Convert(typ).Interface(), nil
}

// Merge declared fields into inferred fields, then finalize types.
func (r *ReflectResolver) applyFieldDeclarations(typ reflect.Type, fields []Field, declared []Field) ([]Field, error) {
	for _, declaration := range declared {
		if declaration.Name == "" {
			return nil, newMetadataError(typ, "declared field without a name")
		}
		_, found, ok := lo.FindIndexOf(fields, func(field Field) bool {
			return field.Name == declaration.Name || (declaration.GoName != "" && field.GoName == declaration.GoName)
		})
		if !ok {
			field, err := declaredField(typ, declaration)
			if err != nil {
				return nil, err
			}
			fields = append(fields, field)
			continue
		}
		merged := fields[found]
		merged.Name = declaration.Name
		if declaration.Type != nil {
			merged.Type = declaration.Type
		}
		if declaration.Elem != nil {
			merged.Elem = declaration.Elem
		}
		if declaration.Setter != "" {
			merged.Setter = declaration.Setter
		}
		if declaration.HasDefault {
			merged.Default = declaration.Default
			merged.HasDefault = true
		}
		fields[found] = merged
	}

	seen := make(map[string]bool, len(fields))
	for i := range fields {
		if seen[fields[i].Name] {
			return nil, newMetadataError(typ, "several fields are named %q", fields[i].Name)
		}
		seen[fields[i].Name] = true
		if err := finalizeField(typ, &fields[i]); err != nil {
			return nil, err
		}
	}
	return fields, nil
}

// A field that was not inferred.
func declaredField(typ reflect.Type, declaration Field) (Field, error) {
	field := declaration
	field.Index = nil
	if declaration.GoName != "" {
		structField, ok := typ.FieldByName(declaration.GoName)
		if !ok || !structField.IsExported() {
			return Field{}, newMetadataError(typ, "declared field %s refers to %s, which is not an exported field", declaration.Name, declaration.GoName)
		}
		field.Index = structField.Index
		if field.Type == nil {
			field.Type = structField.Type
		}
	} else if declaration.Setter == "" {
		return Field{}, newMetadataError(typ, "declared field %s has neither a setter nor a backing struct field", declaration.Name)
	}
	return field, nil
}

// Check setters and resolve the type of a field.
//
// Resolution order: declared type, type of the struct field or setter
// argument, untyped.
func finalizeField(typ reflect.Type, field *Field) error {
	if field.Setter != "" {
		method, ok := reflect.PointerTo(typ).MethodByName(field.Setter)
		if !ok {
			return newMetadataError(typ, "setter %s of field %s does not exist - note that the method must be public", field.Setter, field.Name)
		}
		// Method types include the receiver.
		signature := method.Type
		if signature.NumIn() != 2 || signature.IsVariadic() { //nolint:mnd
			return newMetadataError(typ, "setter %s of field %s MUST take exactly one argument", field.Setter, field.Name)
		}
		switch {
		case signature.NumOut() == 0:
		case signature.NumOut() == 1 && signature.Out(0) == errorInterface:
		default:
			return newMetadataError(typ, "setter %s of field %s MUST return nothing or an error", field.Setter, field.Name)
		}
		argument := signature.In(1)
		if field.Type == nil {
			field.Type = argument
		} else if !field.Type.AssignableTo(argument) && !field.Type.ConvertibleTo(argument) {
			return newMetadataError(typ, "field %s has type %s but setter %s expects %s", field.Name, field.Type, field.Setter, argument)
		}
	}
	if field.Type == nil {
		return newMetadataError(typ, "cannot determine the type of field %s", field.Name)
	}
	elem, isCollection, err := collectionElem(typ, field.Name, field.Type, field.Elem)
	if err != nil {
		return err
	}
	field.IsCollection = isCollection
	field.Elem = elem
	field.Untyped = field.Type.Kind() == reflect.Interface
	return nil
}

// Determine the element type of a collection.
//
// Returns `(nil, false, nil)` if `collection` is not a collection.
func collectionElem(typ reflect.Type, member string, collection reflect.Type, declared reflect.Type) (reflect.Type, bool, error) {
	switch collection.Kind() {
	case reflect.Slice, reflect.Array:
	default:
		if declared != nil {
			return nil, false, newMetadataError(typ, "%s declares an element type but %s is not a collection", member, collection)
		}
		return nil, false, nil
	}
	if declared != nil {
		if !declared.AssignableTo(collection.Elem()) {
			return nil, false, newMetadataError(typ, "%s declares elements of type %s, which cannot be stored in a %s", member, declared, collection)
		}
		return declared, true, nil
	}
	if collection.Elem().Kind() == reflect.Interface {
		return nil, false, &AmbiguousCollectionElementError{
			Type:       typ,
			Member:     member,
			Collection: collection,
		}
	}
	return collection.Elem(), true, nil
}

var errorInterface = reflect.TypeOf((*error)(nil)).Elem()

func resolveConstructor(descriptor *Descriptor, declaration Declaration) error {
	typ := descriptor.Type
	if declaration.Constructor == nil {
		if len(declaration.Params) != 0 {
			return newMetadataError(typ, "parameters are declared but there is no constructor")
		}
		return nil
	}
	constructor := reflect.ValueOf(declaration.Constructor)
	signature := constructor.Type()
	switch {
	case signature.Kind() != reflect.Func:
		return newMetadataError(typ, "no usable constructor, expected a function, got %s", signature)
	case signature.IsVariadic():
		return newMetadataError(typ, "no usable constructor, variadic constructors are not supported")
	case signature.NumIn() != len(declaration.Params):
		return newMetadataError(typ, "constructor takes %d arguments but %d parameters are declared", signature.NumIn(), len(declaration.Params))
	case signature.NumOut() == 0 || signature.NumOut() > 2:
		return newMetadataError(typ, "constructor MUST return %s or *%s, optionally followed by an error", descriptor.Name, descriptor.Name)
	case signature.NumOut() == 2 && signature.Out(1) != errorInterface:
		return newMetadataError(typ, "the second result of the constructor MUST be an error, got %s", signature.Out(1))
	}
	switch signature.Out(0) {
	case typ:
		descriptor.returnsPointer = false
	case reflect.PointerTo(typ):
		descriptor.returnsPointer = true
	default:
		return newMetadataError(typ, "constructor MUST return %s or *%s, got %s", descriptor.Name, descriptor.Name, signature.Out(0))
	}
	descriptor.returnsError = signature.NumOut() == 2 //nolint:mnd
	descriptor.constructor = constructor

	params := make([]Param, len(declaration.Params))
	for i, param := range declaration.Params {
		if param.Name == "" {
			return newMetadataError(typ, "constructor parameter %d has no name", i)
		}
		if _, exists := descriptor.paramsByName[param.Name]; exists {
			return newMetadataError(typ, "several constructor parameters are named %q", param.Name)
		}
		argument := signature.In(i)
		if param.Type == nil {
			param.Type = argument
		} else if !param.Type.AssignableTo(argument) {
			return newMetadataError(typ, "parameter %s is declared as %s but the constructor expects %s", param.Name, param.Type, argument)
		}
		elem, _, err := collectionElem(typ, param.Name, param.Type, param.Elem)
		if err != nil {
			return err
		}
		param.Elem = elem
		if param.Default != nil {
			value := reflect.ValueOf(param.Default)
			switch {
			case value.Type().AssignableTo(param.Type):
			case value.Type().ConvertibleTo(param.Type):
				param.Default = value.Convert(param.Type).Interface()
			default:
				return newMetadataError(typ, "default value of parameter %s has type %s, expected %s", param.Name, value.Type(), param.Type)
			}
			param.Optional = true
		}
		params[i] = param
		descriptor.paramsByName[param.Name] = i
	}
	descriptor.Params = params
	return nil
}

func indirect(typ reflect.Type) reflect.Type {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	return typ
}
