package yaml_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"gotest.tools/v3/assert"

	"github.com/pasqal-io/graphdasse/assertions/testutils"
	"github.com/pasqal-io/graphdasse/deserialize/shared"
	"github.com/pasqal-io/graphdasse/deserialize/yaml"
)

const sample = `
zeta: 1
alpha:
  - true
  - ~
  - x
  - 1.5
anchor: &shared {k: v}
alias: *shared
date: 2018-05-17
quoted: "12"
`

func TestDecode(t *testing.T) {
	node := testutils.Decode(t, yaml.Driver{}, sample)
	testutils.AssertKeys(t, node, "zeta", "alpha", "anchor", "alias", "date", "quoted")
	testutils.AssertTree(t, node, map[string]any{
		"zeta":   shared.Number("1"),
		"alpha":  []any{true, nil, "x", shared.Number("1.5")},
		"anchor": map[string]any{"k": "v"},
		"alias":  map[string]any{"k": "v"},
		// Timestamps stay text, dates are parsed by the engine.
		"date":   "2018-05-17",
		"quoted": "12",
	})
}

func TestEmptyDocument(t *testing.T) {
	assert.Equal(t, testutils.Decode(t, yaml.Driver{}, "").Kind(), shared.KindNull)
	assert.Equal(t, testutils.Decode(t, yaml.Driver{}, "~").Kind(), shared.KindNull)
}

func TestFirstDocumentOnly(t *testing.T) {
	node := testutils.Decode(t, yaml.Driver{}, "a: 1\n---\nb: 2\n")
	testutils.AssertKeys(t, node, "a")
}

func TestSyntaxErrors(t *testing.T) {
	_, err := yaml.Driver{}.Decode([]byte("a: [1, 2"))
	testutils.AssertSyntaxError(t, err, "yaml")

	_, err = yaml.Driver{}.Decode([]byte("? [a, b]\n: 1\n"))
	testutils.AssertSyntaxError(t, err, "yaml")
	assert.ErrorContains(t, err, "only scalar mapping keys are supported")
}

// Each level holds ten references to the previous one.
func aliasLevels(levels int) string {
	var builder strings.Builder
	builder.WriteString("l0: &l0 [x, x, x, x, x, x, x, x, x, x]\n")
	for i := 1; i <= levels; i++ {
		refs := strings.TrimSuffix(strings.Repeat(fmt.Sprintf("*l%d, ", i-1), 10), ", ")
		fmt.Fprintf(&builder, "l%d: &l%d [%s]\n", i, i, refs)
	}
	return builder.String()
}

func TestAliasExpansion(t *testing.T) {
	// Reasonable reuse is fine.
	node := testutils.Decode(t, yaml.Driver{}, aliasLevels(1))
	mapping := testutils.AssertKeys(t, node, "l0", "l1")
	l1, ok := mapping.Lookup("l1")
	assert.Assert(t, ok)
	sequence, ok := l1.AsSequence()
	assert.Assert(t, ok)
	assert.Equal(t, len(sequence), 10)

	// A few hundred bytes describing ten million nodes are not.
	_, err := yaml.Driver{}.Decode([]byte(aliasLevels(6)))
	testutils.AssertSyntaxError(t, err, "yaml")
	assert.Assert(t, errors.Is(err, yaml.ErrAliasExpansion))
}
