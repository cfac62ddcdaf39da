package json_test

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"gotest.tools/v3/assert"

	"github.com/pasqal-io/graphdasse/assertions/testutils"
	jsonPkg "github.com/pasqal-io/graphdasse/deserialize/json"
	"github.com/pasqal-io/graphdasse/deserialize/shared"
)

func TestDecodeKeepsOrder(t *testing.T) {
	node := testutils.Decode(t, jsonPkg.Driver{}, `{"zeta": 1, "alpha": [true, null, "x", 1.50], "mid": {}}`)
	testutils.AssertKeys(t, node, "zeta", "alpha", "mid")
	testutils.AssertTree(t, node, map[string]any{
		"zeta":  shared.Number("1"),
		"alpha": []any{true, nil, "x", shared.Number("1.50")},
		"mid":   map[string]any{},
	})
}

func TestDecodeKeepsNumbers(t *testing.T) {
	node := testutils.Decode(t, jsonPkg.Driver{}, `[12345678901234567890123, -0.1e-7, 3]`)
	sequence, ok := node.AsSequence()
	assert.Assert(t, ok)
	assert.Equal(t, len(sequence), 3)
	for _, entry := range sequence {
		assert.Equal(t, entry.Kind(), shared.KindNumber)
	}
	assert.Equal(t, sequence[0].Interface(), shared.Number("12345678901234567890123"))
	assert.Equal(t, sequence[1].Interface(), shared.Number("-0.1e-7"))
}

func TestDecodeScalars(t *testing.T) {
	assert.Equal(t, testutils.Decode(t, jsonPkg.Driver{}, `null`).Kind(), shared.KindNull)
	assert.Equal(t, testutils.Decode(t, jsonPkg.Driver{}, `false`).Kind(), shared.KindBool)
	assert.Equal(t, testutils.Decode(t, jsonPkg.Driver{}, `"été"`).Interface(), "été")
}

func TestDuplicateKeys(t *testing.T) {
	node := testutils.Decode(t, jsonPkg.Driver{}, `{"a": 1, "b": 2, "a": 3}`)
	mapping := testutils.AssertKeys(t, node, "a", "b")
	value, ok := mapping.Lookup("a")
	assert.Assert(t, ok)
	assert.Equal(t, value.Interface(), shared.Number("3"))
}

func TestSyntaxErrors(t *testing.T) {
	_, err := jsonPkg.Driver{}.DecodeString(`{"a": x}`)
	syntax := testutils.AssertSyntaxError(t, err, "json")
	assert.Assert(t, syntax.Offset > 0)
	assert.ErrorContains(t, err, "invalid character 'x'")

	_, err = jsonPkg.Driver{}.DecodeString(`{"a": `)
	testutils.AssertSyntaxError(t, err, "json")

	_, err = jsonPkg.Driver{}.DecodeString(`{} {}`)
	testutils.AssertSyntaxError(t, err, "json")

	_, err = jsonPkg.Driver{}.DecodeString(``)
	testutils.AssertSyntaxError(t, err, "json")
}

func TestNestingLimit(t *testing.T) {
	nested := func(depth int) string {
		return strings.Repeat(`{"a": [`, depth) + `"]}"` + strings.Repeat("]}", depth)
	}
	// Brackets within strings do not count.
	testutils.Decode(t, jsonPkg.Driver{}, nested(shared.MaxNesting/4))

	_, err := jsonPkg.Driver{}.DecodeString(nested(shared.MaxNesting))
	assert.Assert(t, errors.Is(err, shared.ErrNestingTooDeep), "got %v", err)
}
