// Code specific to deserializing YAML.
package yaml

import (
	"strconv"

	"github.com/cockroachdb/errors"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/pasqal-io/graphdasse/deserialize/internal"
	"github.com/pasqal-io/graphdasse/deserialize/shared"
)

// The deserialization driver for YAML.
//
// Only the first document of a stream is read. Anchors and aliases are
// resolved, mapping keys keep their document order.
type Driver struct{}

func (Driver) Name() string {
	return "yaml"
}

// How many nodes a document may expand to, per byte of source. Aliases
// let a short document describe a huge tree.
const expansionPerByte = 64

// The minimal expansion budget, for short documents.
const minExpansion = 4096

// Returned (wrapped in a `SyntaxError`) when aliases expand a document
// beyond its budget.
var ErrAliasExpansion = errors.New("document expands to too many nodes through aliases")

func (Driver) Decode(source []byte) (shared.Node, error) {
	var document yamlv3.Node
	if err := yamlv3.Unmarshal(source, &document); err != nil {
		return nil, &shared.SyntaxError{
			Driver:  "yaml",
			Offset:  -1,
			Wrapped: err,
		}
	}
	if document.Kind == 0 || len(document.Content) == 0 {
		// Empty document.
		return internal.Null(), nil
	}
	c := converter{budget: max(minExpansion, expansionPerByte*len(source))}
	return c.convert(document.Content[0], 0)
}

// Converts a yaml tree, counting the nodes it produces.
type converter struct {
	budget int
}

func (c *converter) convert(node *yamlv3.Node, depth int) (shared.Node, error) {
	if depth > shared.MaxNesting {
		return nil, shared.ErrNestingTooDeep
	}
	c.budget--
	if c.budget < 0 {
		return nil, syntaxError(node, ErrAliasExpansion)
	}
	switch node.Kind {
	case yamlv3.DocumentNode:
		if len(node.Content) == 0 {
			return internal.Null(), nil
		}
		return c.convert(node.Content[0], depth)
	case yamlv3.AliasNode:
		return c.convert(node.Alias, depth+1)
	case yamlv3.SequenceNode:
		result := make(internal.Sequence, len(node.Content))
		for i, child := range node.Content {
			converted, err := c.convert(child, depth+1)
			if err != nil {
				return nil, err
			}
			result[i] = converted
		}
		return result, nil
	case yamlv3.MappingNode:
		result := internal.NewMapping()
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			if key.Kind != yamlv3.ScalarNode {
				return nil, syntaxError(key, errors.Newf("only scalar mapping keys are supported"))
			}
			value, err := c.convert(node.Content[i+1], depth+1)
			if err != nil {
				return nil, err
			}
			result.Set(key.Value, value)
		}
		return result, nil
	case yamlv3.ScalarNode:
		return scalar(node)
	default:
		return nil, syntaxError(node, errors.Newf("unsupported yaml node kind %d", node.Kind))
	}
}

func scalar(node *yamlv3.Node) (shared.Node, error) {
	switch node.ShortTag() {
	case "!!null":
		return internal.Null(), nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return nil, syntaxError(node, err)
		}
		return internal.Bool(b), nil
	case "!!int":
		var i int64
		if err := node.Decode(&i); err != nil {
			// Out of range for int64, keep the digits.
			return internal.Number(shared.Number(node.Value)), nil //nolint:nilerr
		}
		return internal.Number(shared.Number(strconv.FormatInt(i, 10))), nil
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return nil, syntaxError(node, err)
		}
		return internal.Number(shared.Number(strconv.FormatFloat(f, 'g', -1, 64))), nil
	default:
		// !!str, !!timestamp, !!binary and custom tags are kept verbatim.
		return internal.String(node.Value), nil
	}
}

func syntaxError(node *yamlv3.Node, err error) error {
	return &shared.SyntaxError{
		Driver:  "yaml",
		Offset:  -1,
		Wrapped: errors.Wrapf(err, "line %d, column %d", node.Line, node.Column),
	}
}

var _ shared.Driver = Driver{} // Type assertion.
