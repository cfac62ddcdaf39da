// Helpers for testing drivers and normalizers.
package testutils

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/pasqal-io/graphdasse/deserialize/shared"
)

// Decode `source` with `driver`, failing the test on error.
func Decode(t *testing.T, driver shared.Driver, source string) shared.Node {
	t.Helper()
	node, err := driver.Decode([]byte(source))
	assert.NilError(t, err, "could not decode %q with %s", source, driver.Name())
	assert.Assert(t, node != nil)
	return node
}

// Fail unless `node` holds exactly `expected`, as plain Go data.
//
// Numbers are compared as `shared.Number`, i.e. through their text.
func AssertTree(t *testing.T, node shared.Node, expected any) {
	t.Helper()
	assert.DeepEqual(t, node.Interface(), expected)
}

// Fail unless `node` is a mapping whose keys are exactly `keys`, in this order.
func AssertKeys(t *testing.T, node shared.Node, keys ...string) shared.Mapping {
	t.Helper()
	mapping, ok := node.AsMapping()
	assert.Assert(t, ok, "expected a mapping, got %s", node.Kind())
	assert.DeepEqual(t, mapping.Keys(), keys)
	return mapping
}

// Fail unless `err` is a `*shared.SyntaxError` reported by `driver`.
func AssertSyntaxError(t *testing.T, err error, driver string) *shared.SyntaxError {
	t.Helper()
	assert.Assert(t, err != nil, "expected a syntax error")
	syntax, ok := err.(*shared.SyntaxError) //nolint:errorlint
	assert.Assert(t, ok, "expected a *shared.SyntaxError, got %T: %s", err, err)
	assert.Equal(t, syntax.Driver, driver)
	return syntax
}
