// Tree nodes shared by the encoding drivers.
package internal

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/samber/lo"

	"github.com/pasqal-io/graphdasse/deserialize/shared"
)

// A scalar: nil, bool, shared.Number or string.
type Scalar struct {
	value any
}

func Null() Scalar {
	return Scalar{value: nil}
}
func Bool(b bool) Scalar {
	return Scalar{value: b}
}
func Number(n shared.Number) Scalar {
	return Scalar{value: n}
}
func String(s string) Scalar {
	return Scalar{value: s}
}

func (s Scalar) Kind() shared.Kind {
	switch s.value.(type) {
	case bool:
		return shared.KindBool
	case shared.Number:
		return shared.KindNumber
	case string:
		return shared.KindString
	default:
		return shared.KindNull
	}
}
func (s Scalar) AsMapping() (shared.Mapping, bool) {
	return nil, false
}
func (s Scalar) AsSequence() ([]shared.Node, bool) {
	return nil, false
}
func (s Scalar) Interface() any {
	return s.value
}

var _ shared.Node = Scalar{} //nolint:exhaustruct

// An ordered list of nodes.
type Sequence []shared.Node

func (s Sequence) Kind() shared.Kind {
	return shared.KindSequence
}
func (s Sequence) AsMapping() (shared.Mapping, bool) {
	return nil, false
}
func (s Sequence) AsSequence() ([]shared.Node, bool) {
	return s, true
}
func (s Sequence) Interface() any {
	result := make([]any, len(s))
	for i, entry := range s {
		result[i] = entry.Interface()
	}
	return result
}

var _ shared.Node = Sequence{}

// An ordered mapping, built by drivers through `Set`.
type Mapping struct {
	keys   []string
	values map[string]shared.Node
}

func NewMapping() *Mapping {
	return &Mapping{
		keys:   make([]string, 0),
		values: make(map[string]shared.Node),
	}
}

// Set a key.
//
// If the key already exists, the new value replaces the old one but the key
// keeps its original position.
func (m *Mapping) Set(key string, value shared.Node) {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m *Mapping) Lookup(key string) (shared.Node, bool) {
	value, ok := m.values[key]
	return value, ok
}
func (m *Mapping) Keys() []string {
	return m.keys
}
func (m *Mapping) AsNode() shared.Node {
	return m
}

func (m *Mapping) Kind() shared.Kind {
	return shared.KindMapping
}
func (m *Mapping) AsMapping() (shared.Mapping, bool) {
	return m, true
}
func (m *Mapping) AsSequence() ([]shared.Node, bool) {
	return nil, false
}
func (m *Mapping) Interface() any {
	result := make(map[string]any, len(m.keys))
	for _, k := range m.keys {
		result[k] = m.values[k].Interface()
	}
	return result
}

var _ shared.Node = &Mapping{}    //nolint:exhaustruct
var _ shared.Mapping = &Mapping{} //nolint:exhaustruct

// Convert plain Go data (as produced by e.g. `encoding/json` into an `any`)
// into a tree. Map keys are sorted, as Go maps carry no order.
func FromInterface(value any) shared.Node {
	switch typed := value.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(typed)
	case shared.Number:
		return Number(typed)
	case string:
		return String(typed)
	case float64:
		return Number(shared.Number(formatFloat(typed)))
	case int:
		return Number(shared.Number(formatInt(int64(typed))))
	case int64:
		return Number(shared.Number(formatInt(typed)))
	case []any:
		result := make(Sequence, len(typed))
		for i, entry := range typed {
			result[i] = FromInterface(entry)
		}
		return result
	case map[string]any:
		result := NewMapping()
		for _, k := range sortedKeys(typed) {
			result.Set(k, FromInterface(typed[k]))
		}
		return result
	case shared.Node:
		return typed
	default:
		return String(fmt.Sprint(typed))
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatInt(i int64) string {
	return strconv.FormatInt(i, 10)
}

func sortedKeys(m map[string]any) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)
	return keys
}
