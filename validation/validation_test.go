package validation_test

import (
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"gotest.tools/v3/assert"

	"github.com/pasqal-io/graphdasse/validation"
)

type ExamplePayload struct {
	left   string
	right  string
	middle string
}

type ExampleCanInitialize struct {
	payload *ExamplePayload
}

func (schema *ExampleCanInitialize) Initialize() error {
	schema.payload = &ExamplePayload{ //nolint:exhaustruct
		left:  "left",
		right: "right",
	}
	return nil
}

var _ validation.Initializer = &ExampleCanInitialize{} //nolint:exhaustruct

// A trivial test of initialization.
//
// See the tests for deserialize for more advanced checks.
func TestInitialization(t *testing.T) {
	result := ExampleCanInitialize{} //nolint:exhaustruct
	assert.NilError(t, result.Initialize())
	assert.Equal(t, result.payload.left, "left", "Field left should have been set")
	assert.Equal(t, result.payload.right, "right", "Field right should have been set")
	assert.Equal(t, result.payload.middle, "", "Field middle should have been zeroed")
}

type ExampleCanValidate struct {
	Kind      string `json:"kind"` // Public field, will be deserialized.
	kindIndex uint   // Private field, will be initialized by the validation step.
}

func (schema *ExampleCanValidate) Validate() error {
	switch schema.Kind {
	case "zero":
		schema.kindIndex = 0
	case "one":
		schema.kindIndex = 1
	case "two":
		schema.kindIndex = 2
	default:
		return fmt.Errorf("Invalid schema kind %s", schema.Kind)
	}
	// Success.
	return nil
}

var _ validation.Validator = &ExampleCanValidate{} //nolint:exhaustruct

// A trivial test of validation.
//
// See the tests for deserialize for more advanced checks.
func TestValidation(t *testing.T) {
	// This should pass validation.
	good := ExampleCanValidate{
		Kind: "one",
	} //nolint:exhaustruct
	assert.NilError(t, good.Validate())
	assert.Equal(t, good.Kind, "one", "Field Kind should have been left unchanged")
	assert.Equal(t, good.kindIndex, uint(1), "Field kindIndex should have been set")

	// This shouldn't.
	bad := ExampleCanValidate{
		Kind: "three",
	} //nolint:exhaustruct
	assert.Error(t, bad.Validate(), "Invalid schema kind three", "Validation should reject")
}

var errOutOfStock = errors.New("out of stock")

func TestWrapError(t *testing.T) {
	err := validation.WrapError("Order.items[2]", errOutOfStock)
	assert.Error(t, err, "validation error at Order.items[2]:\n\t * out of stock")
	assert.Assert(t, errors.Is(err, errOutOfStock))

	var wrapped validation.Error
	assert.Assert(t, errors.As(errors.Wrap(err, "while loading"), &wrapped))
	assert.Equal(t, wrapped.Path, "Order.items[2]")
}
