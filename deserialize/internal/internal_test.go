package internal_test

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/pasqal-io/graphdasse/assertions/testutils"
	"github.com/pasqal-io/graphdasse/deserialize/internal"
	"github.com/pasqal-io/graphdasse/deserialize/shared"
)

func TestMappingKeepsFirstPosition(t *testing.T) {
	mapping := internal.NewMapping()
	mapping.Set("b", internal.String("first"))
	mapping.Set("a", internal.Bool(true))
	mapping.Set("b", internal.String("second"))

	testutils.AssertKeys(t, mapping, "b", "a")
	testutils.AssertTree(t, mapping, map[string]any{
		"b": "second",
		"a": true,
	})
}

func TestScalarKinds(t *testing.T) {
	assert.Equal(t, internal.Null().Kind(), shared.KindNull)
	assert.Equal(t, internal.Bool(false).Kind(), shared.KindBool)
	assert.Equal(t, internal.Number("4").Kind(), shared.KindNumber)
	assert.Equal(t, internal.String("").Kind(), shared.KindString)
	assert.Assert(t, internal.Sequence{}.Kind() == shared.KindSequence)
}

type opaque struct {
	name string
}

func (o opaque) String() string {
	return o.name
}

func TestFromInterface(t *testing.T) {
	node := internal.FromInterface(map[string]any{
		"z":      1.5,
		"a":      []any{int64(3), 4, nil},
		"m":      map[string]any{"inner": shared.Number("12")},
		"opaque": opaque{name: "hidden"},
	})
	// Go maps carry no order.
	testutils.AssertKeys(t, node, "a", "m", "opaque", "z")
	testutils.AssertTree(t, node, map[string]any{
		"z":      shared.Number("1.5"),
		"a":      []any{shared.Number("3"), shared.Number("4"), nil},
		"m":      map[string]any{"inner": shared.Number("12")},
		"opaque": "hidden",
	})

	// Nodes are kept as they are.
	str := internal.String("x")
	assert.Equal(t, internal.FromInterface(str), shared.Node(str))
}

func TestUnwrap(t *testing.T) {
	node := internal.FromInterface(map[string]any{"book": map[string]any{"title": "x"}})
	inner, err := shared.Unwrap(node, "book")
	assert.NilError(t, err)
	testutils.AssertTree(t, inner, map[string]any{"title": "x"})

	_, err = shared.Unwrap(node, "serie")
	assert.ErrorContains(t, err, "no such key")

	_, err = shared.Unwrap(internal.String("book"), "book")
	assert.ErrorContains(t, err, "expected a mapping, got string")
}
