// Code specific to deserializing (key, list of values) inputs, such as
// query strings.
package kvlist

import (
	"net/url"
	"slices"

	"github.com/samber/lo"

	"github.com/pasqal-io/graphdasse/deserialize/internal"
	"github.com/pasqal-io/graphdasse/deserialize/shared"
)

// The deserialization driver for (k, value list).
type Driver struct{}

// The type of a (key, value list) store.
type KVList map[string][]string

// The values attached to a key.
//
// A key with exactly one value behaves as a string, but may also be read as a
// list of one string, so that `?tag=a` deserializes into a `[]string` field
// just like `?tag=a&tag=b` does.
type Value struct {
	wrapped []string
}

func (v Value) Kind() shared.Kind {
	if len(v.wrapped) == 1 {
		return shared.KindString
	}
	return shared.KindSequence
}

// A KVValue may never be converted into a mapping.
func (v Value) AsMapping() (shared.Mapping, bool) {
	return nil, false
}
func (v Value) AsSequence() ([]shared.Node, bool) {
	result := make([]shared.Node, len(v.wrapped))
	for i, value := range v.wrapped {
		result[i] = internal.String(value)
	}
	return result, true
}
func (v Value) Interface() any {
	if len(v.wrapped) == 1 {
		return v.wrapped[0]
	}
	result := make([]any, len(v.wrapped))
	for i, value := range v.wrapped {
		result[i] = value
	}
	return result
}

var _ shared.Node = Value{} //nolint:exhaustruct

// Convert into a tree. Keys are sorted, as Go maps carry no order.
func (list KVList) AsNode() shared.Node {
	result := internal.NewMapping()
	for _, key := range sortedKeys(list) {
		result.Set(key, Value{wrapped: list[key]})
	}
	return result
}

func (Driver) Name() string {
	return "query"
}

// Decode a query string, e.g. `a=1&b=2&b=3`. A leading `?` is ignored.
func (Driver) Decode(source []byte) (shared.Node, error) {
	raw := string(source)
	if len(raw) > 0 && raw[0] == '?' {
		raw = raw[1:]
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, &shared.SyntaxError{
			Driver:  "query",
			Offset:  -1,
			Wrapped: err,
		}
	}
	return KVList(values).AsNode(), nil
}

var _ shared.Driver = Driver{} //nolint:exhaustruct

func sortedKeys(list KVList) []string {
	keys := lo.Keys(list)
	slices.Sort(keys)
	return keys
}
