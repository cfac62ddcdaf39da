// Hooks that let a type take part in its own construction.
//
// The deserializer does not validate anything by itself beyond the shape of
// the input. Types that need more implement these interfaces.
package validation

import "fmt"

// A type that supports initialization.
//
// When a struct is built without a constructor (i.e. from its zero value),
// the deserializer calls `Initialize()` **before** assigning any field from
// the input. This is the place to set defaults for fields that may be
// missing from the input.
//
// Important: implement this on **pointers**, otherwise the method operates on
// a copy and the result is lost immediately.
type Initializer interface {
	Initialize() error
}

// A type that supports validation.
//
// The deserializer calls `Validate()` **after** the value has been fully
// built, at every depth of the tree. If validation fails, the entire
// deserialization fails.
//
// Important: implement this on **pointers**. This lets `Validate()` perform
// any necessary changes to the data structure, e.g. populate private fields
// from the contents of public fields.
type Validator interface {
	Validate() error
}

// A validation error, i.e. the input had the right shape but was rejected by
// a `Validator`.
type Error struct {
	// The path at which validation failed, e.g. "Book.reviews[2]".
	Path string

	// The error returned by `Validate()`.
	Wrapped error
}

func (e Error) Error() string {
	return fmt.Sprintf("validation error at %s:\n\t * %s", e.Path, e.Wrapped)
}

func (e Error) Unwrap() error {
	return e.Wrapped
}

// Wrap the error returned by a `Validator`.
func WrapError(path string, err error) error {
	return Error{
		Path:    path,
		Wrapped: err,
	}
}
