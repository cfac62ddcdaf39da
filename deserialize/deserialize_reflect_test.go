package deserialize_test

import (
	"encoding/json"
	"reflect"
	"strconv"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/pasqal-io/graphdasse/deserialize"
	"github.com/pasqal-io/graphdasse/deserialize/kvlist"
)

func twoWaysReflect[Input any, Output any](t *testing.T, sample Input) (*Output, error) {
	t.Helper()
	var placeholderOutput Output
	typeOutput := reflect.TypeOf(placeholderOutput)
	deserializer, err := deserialize.MakeReflectDeserializer(deserialize.JSONOptions(""), typeOutput)
	if err != nil {
		t.Error(err)
		return nil, err //nolint:wrapcheck
	}

	buf, err := json.Marshal(sample)
	if err != nil {
		t.Error(err)
		return nil, err //nolint:wrapcheck
	}
	deserialized := new(Output)
	reflectDeserialized := reflect.ValueOf(deserialized).Elem()
	err = deserializer.DeserializeBytesTo(buf, nil, &reflectDeserialized)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return deserialized, nil
}

func TestReflectDeserializer(t *testing.T) {
	type Test struct {
		String string
		Int    int
	}
	sample := Test{
		String: "abc",
		Int:    123,
	}
	out, err := twoWaysReflect[Test, Test](t, sample)
	if err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, &sample, out)
}

func TestReflectEmbeddedDeserializer(t *testing.T) {
	type Inner struct {
		Nested string
	}
	type Outer struct {
		Inner
		String string
		Int    int
	}
	sample := Outer{
		Inner: Inner{
			Nested: "def",
		},
		String: "abc",
		Int:    123,
	}
	out, err := twoWaysReflect[Outer, Outer](t, sample)
	if err != nil {
		t.Fatal(err)
	}
	assert.DeepEqual(t, &sample, out)
}

func TestReflectDeserializerRejectsWrongTarget(t *testing.T) {
	type Test struct {
		String string
	}
	deserializer, err := deserialize.MakeReflectDeserializer(deserialize.JSONOptions(""), reflect.TypeOf(Test{})) //nolint:exhaustruct
	assert.NilError(t, err)
	assert.Equal(t, deserializer.Type(), reflect.TypeOf(Test{})) //nolint:exhaustruct

	wrong := reflect.ValueOf(new(int)).Elem()
	err = deserializer.DeserializeBytesTo([]byte(`{"String": "abc"}`), nil, &wrong)
	assert.ErrorContains(t, err, "cannot deserialize")
}

func TestReflectKVDeserializer(t *testing.T) {
	type Test struct {
		String string
		Int    int
	}
	sample := Test{
		String: "abc",
		Int:    123,
	}
	deserializer, err := deserialize.MakeReflectDeserializer(deserialize.QueryOptions(""), reflect.TypeOf(sample))
	assert.NilError(t, err)

	kvList := kvlist.KVList{}
	kvList["String"] = []string{sample.String}
	kvList["Int"] = []string{strconv.Itoa(sample.Int)}

	deserialized := new(Test)
	reflectDeserialized := reflect.ValueOf(deserialized).Elem()
	err = deserializer.DeserializeNodeTo(kvList.AsNode(), nil, &reflectDeserialized)
	assert.NilError(t, err)
	assert.Equal(t, *deserialized, sample)
}

// Useful for pagination, as we don't have to repeat the same fields in each
// query struct.
func TestNestedStructReflectKVDeserializer(t *testing.T) {
	type NestedStruct struct {
		BBB string
	}
	type MainStruct struct {
		AAA          string
		NestedStruct NestedStruct `flatten:""`
	}
	sample := MainStruct{
		AAA: "aaa",
		NestedStruct: NestedStruct{
			BBB: "bbb",
		},
	}

	deserializer, err := deserialize.MakeReflectDeserializer(deserialize.QueryOptions(""), reflect.TypeOf(sample))
	assert.NilError(t, err)

	deserialized := new(MainStruct)
	reflectDeserialized := reflect.ValueOf(deserialized).Elem()
	err = deserializer.DeserializeBytesTo([]byte("AAA=aaa&BBB=bbb"), nil, &reflectDeserialized)
	assert.NilError(t, err)
	assert.Equal(t, *deserialized, sample)
}

func TestAnonymStructReflectKVDeserializer(t *testing.T) {
	type EmbeddedStruct struct {
		BBB string
	}
	type MainStruct struct {
		AAA            string
		EmbeddedStruct // Embedded struct are anonymous fields in reflection, flattened automatically.
	}
	sample := MainStruct{
		AAA:            "aaa",
		EmbeddedStruct: EmbeddedStruct{BBB: "bbb"},
	}

	deserializer, err := deserialize.MakeReflectDeserializer(deserialize.QueryOptions(""), reflect.TypeOf(sample))
	assert.NilError(t, err)

	deserialized := new(MainStruct)
	reflectDeserialized := reflect.ValueOf(deserialized).Elem()
	err = deserializer.DeserializeBytesTo([]byte("AAA=aaa&BBB=bbb"), nil, &reflectDeserialized)
	assert.NilError(t, err)
	assert.Equal(t, *deserialized, sample)
}
