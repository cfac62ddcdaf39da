package tags

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/pasqal-io/graphdasse/assertions/initialized"
)

// A representation of the tags for a given field.
type Tags struct {
	tags    map[string][]string
	witness initialized.IsInitialized
}

func Empty() Tags {
	return Tags{
		tags:    make(map[string][]string),
		witness: initialized.Make(),
	}
}

// Tags whose value is kept verbatim rather than split on commas.
var verbatim = map[string]bool{
	"default": true,
	"setter":  true,
}

// Parse the tag associated to a struct field, following the syntax of
// `reflect.StructTag`.
func Parse(tag reflect.StructTag) (Tags, error) {
	tags := make(map[string][]string)
	// Scanning follows reflect.StructTag.Lookup.
	for tag != "" {
		// Skip leading space.
		i := 0
		for i < len(tag) && tag[i] == ' ' {
			i++
		}
		tag = tag[i:]
		if tag == "" {
			break
		}

		// Scan to colon. A space, a quote or a control character is a syntax error.
		i = 0
		for i < len(tag) && tag[i] > ' ' && tag[i] != ':' && tag[i] != '"' && tag[i] != 0x7f {
			i++
		}
		if i == 0 || i+1 >= len(tag) || tag[i] != ':' || tag[i+1] != '"' {
			// Give up on parsing.
			break
		}
		name := string(tag[:i])
		if _, exists := tags[name]; exists {
			return Tags{}, errors.Newf("invalid tag, name %s should only be defined once", name)
		}

		tag = tag[i+1:]

		// Scan quoted string to find value.
		i = 1
		for i < len(tag) && tag[i] != '"' {
			if tag[i] == '\\' {
				i++
			}
			i++
		}
		if i >= len(tag) {
			break
		}
		qvalue := string(tag[:i+1])
		tag = tag[i+1:]

		value, err := strconv.Unquote(qvalue)
		if err != nil {
			return Tags{}, errors.Wrapf(err, "ill-formed tag %s", name)
		}

		if verbatim[name] {
			tags[name] = []string{value}
			continue
		}
		split := strings.Split(value, ",")
		trimmed := make([]string, 0, len(split))
		for i, s := range split {
			t := strings.TrimSpace(s)
			// The first entry is positional (e.g. the renaming in `json:",omitempty"`).
			if t != "" || i == 0 {
				trimmed = append(trimmed, t)
			}
		}
		tags[name] = trimmed
	}
	return Tags{
		tags:    tags,
		witness: initialized.Make(),
	}, nil
}

// Return the default value that may be used to initialize a
// field if no value is provided.
//
// This is tag `default`.
func (tags Tags) Default() *string {
	tags.witness.Assert()
	result, ok := tags.tags["default"]
	if !ok || len(result) == 0 {
		return nil
	}
	return &result[0]
}

// Return the name of the method used to assign a field, if any.
//
// This is tag `setter`, e.g. `setter:"SetTitle"`.
func (tags Tags) Setter() *string {
	tags.witness.Assert()
	result, ok := tags.tags["setter"]
	if !ok || len(result) == 0 || result[0] == "" {
		return nil
	}
	return &result[0]
}

// Return the public field name for a field.
//
// e.g. for json, if there's a tag `json:"foo"`, this means
// that the field should be imported as `foo`. An empty renaming
// (`json:",omitempty"`) is no renaming.
func (tags Tags) PublicFieldName(key string) *string {
	tags.witness.Assert()
	result, ok := tags.tags[key]
	if !ok || len(result) == 0 || result[0] == "" {
		return nil
	}
	return &result[0]
}

// Return `true` if this field is marked as `flatten`, e.g.
//
//	type Flattening struct {
//	    A string
//	    B struct {
//	        C string
//	        D string
//	    } `flatten:""`
//	}
//
// should deserialized from the following JSON
//
//	{
//	   "A": "aaaaa",
//	   // no field B
//	   "C": "ccccc",
//	   "D": "ddddd"
//	}
func (tags Tags) IsFlattened() bool {
	tags.witness.Assert()
	_, ok := tags.tags["flatten"]
	return ok
}

// Lookup a key.
func (tags Tags) Lookup(key string) ([]string, bool) {
	tags.witness.Assert()
	result, ok := tags.tags[key]
	return result, ok
}
