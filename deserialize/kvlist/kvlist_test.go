package kvlist_test

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/pasqal-io/graphdasse/assertions/testutils"
	"github.com/pasqal-io/graphdasse/deserialize/kvlist"
	"github.com/pasqal-io/graphdasse/deserialize/shared"
)

func TestDecode(t *testing.T) {
	node := testutils.Decode(t, kvlist.Driver{}, "?tag=b&id=1&tag=a&name=caf%C3%A9")
	mapping := testutils.AssertKeys(t, node, "id", "name", "tag")
	testutils.AssertTree(t, node, map[string]any{
		"id":   "1",
		"name": "café",
		"tag":  []any{"b", "a"},
	})

	tag, ok := mapping.Lookup("tag")
	assert.Assert(t, ok)
	assert.Equal(t, tag.Kind(), shared.KindSequence)
}

func TestSingleValue(t *testing.T) {
	node := kvlist.KVList{"id": {"1"}}.AsNode()
	mapping := testutils.AssertKeys(t, node, "id")
	id, ok := mapping.Lookup("id")
	assert.Assert(t, ok)

	// Both a string...
	assert.Equal(t, id.Kind(), shared.KindString)
	assert.Equal(t, id.Interface(), "1")

	// ...and a list of one string.
	sequence, ok := id.AsSequence()
	assert.Assert(t, ok)
	assert.Equal(t, len(sequence), 1)
	assert.Equal(t, sequence[0].Interface(), "1")

	_, ok = id.AsMapping()
	assert.Assert(t, !ok)
}

func TestSyntaxError(t *testing.T) {
	_, err := kvlist.Driver{}.Decode([]byte("a=%zz"))
	testutils.AssertSyntaxError(t, err, "query")
}
