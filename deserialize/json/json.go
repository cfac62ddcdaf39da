// Code specific to deserializing JSON.
package json

import (
	stdjson "encoding/json"

	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"

	"github.com/pasqal-io/graphdasse/deserialize/internal"
	"github.com/pasqal-io/graphdasse/deserialize/shared"
)

// The deserialization driver for JSON.
//
// Unlike `encoding/json` into a `map[string]any`, this driver preserves the
// order of keys and keeps numbers as `shared.Number`.
type Driver struct{}

// We only use the streaming API, the configuration only matters for pooling.
var api = jsoniter.ConfigCompatibleWithStandardLibrary

func (Driver) Name() string {
	return "json"
}

// Decode a JSON document into a tree.
func (Driver) Decode(source []byte) (shared.Node, error) {
	// The iterator is lenient with truncated input once it has hit the end of
	// the buffer, so we check well-formedness upfront. This also rejects
	// trailing data after the top-level value.
	if tooDeep(source) {
		return nil, shared.ErrNestingTooDeep
	}
	if !stdjson.Valid(source) {
		return nil, describe(source)
	}

	iter := api.BorrowIterator(source)
	defer api.ReturnIterator(iter)
	return readNode(iter, 0)
}

// Decode a JSON document from a string.
func (d Driver) DecodeString(source string) (shared.Node, error) {
	return d.Decode([]byte(source))
}

func readNode(iter *jsoniter.Iterator, depth int) (shared.Node, error) {
	if depth > shared.MaxNesting {
		return nil, shared.ErrNestingTooDeep
	}
	switch iter.WhatIsNext() {
	case jsoniter.NilValue:
		iter.ReadNil()
		return internal.Null(), nil
	case jsoniter.BoolValue:
		return internal.Bool(iter.ReadBool()), nil
	case jsoniter.NumberValue:
		return internal.Number(iter.ReadNumber()), nil
	case jsoniter.StringValue:
		return internal.String(iter.ReadString()), nil
	case jsoniter.ArrayValue:
		sequence := make(internal.Sequence, 0)
		var err error
		iter.ReadArrayCB(func(iter *jsoniter.Iterator) bool {
			var entry shared.Node
			if entry, err = readNode(iter, depth+1); err != nil {
				return false
			}
			sequence = append(sequence, entry)
			return true
		})
		if err != nil {
			return nil, err
		}
		return sequence, nil
	case jsoniter.ObjectValue:
		mapping := internal.NewMapping()
		var err error
		iter.ReadObjectCB(func(iter *jsoniter.Iterator, key string) bool {
			var entry shared.Node
			if entry, err = readNode(iter, depth+1); err != nil {
				return false
			}
			mapping.Set(key, entry)
			return true
		})
		if err != nil {
			return nil, err
		}
		return mapping, nil
	default:
		// Cannot happen on validated input.
		return nil, &shared.SyntaxError{
			Driver:  "json",
			Offset:  -1,
			Wrapped: errors.AssertionFailedf("unexpected token in validated input"),
		}
	}
}

// Whether arrays and objects nest deeper than `shared.MaxNesting`.
//
// `encoding/json` has its own limit, which it reports as a syntax error, so
// we check before validating.
func tooDeep(source []byte) bool {
	depth := 0
	inString, escaped := false, false
	for _, c := range source {
		switch {
		case inString:
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
		case c == '"':
			inString = true
		case c == '{' || c == '[':
			depth++
			if depth > shared.MaxNesting {
				return true
			}
		case c == '}' || c == ']':
			depth--
		}
	}
	return false
}

// Build a `SyntaxError` with as much detail as the standard library can give us.
func describe(source []byte) error {
	var sink any
	err := stdjson.Unmarshal(source, &sink)
	var stdSyntax *stdjson.SyntaxError
	if errors.As(err, &stdSyntax) {
		return &shared.SyntaxError{
			Driver:  "json",
			Offset:  int(stdSyntax.Offset),
			Wrapped: errors.New(stdSyntax.Error()),
		}
	}
	if err == nil {
		err = errors.New("malformed JSON")
	}
	return &shared.SyntaxError{
		Driver:  "json",
		Offset:  -1,
		Wrapped: err,
	}
}

var _ shared.Driver = Driver{} // Type assertion.
