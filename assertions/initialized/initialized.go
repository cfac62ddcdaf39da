package initialized

// A witness type used to detect structs that were not built by their
// constructor.
//
// In Go, `new(T)`, `T{}` or a literal outside of the package all produce a
// value that claims to be a `T` without any of the guarantees that the
// constructor establishes (e.g. a `metadata.Descriptor` without its
// constructor, or a `tags.Tags` without its table).
//
// Operation manual:
// - add a field `witness IsInitialized` in your struct
// - call `initialized.Make()` from your constructor
// - call `self.witness.Assert()` whenever you access data from your struct.
//
// Accessing a value that was not initialized panics, which is the
// programming error we want to surface early.
type IsInitialized struct {
	isInitialized bool
}

// Create a `IsInitialized`.
func Make() IsInitialized {
	return IsInitialized{
		isInitialized: true,
	}
}

// Panics unless this witness was created by `initialized.Make()`.
func (witness IsInitialized) Assert() {
	if !witness.isInitialized {
		panic("Struct was not initialized")
	}
}

// Same as `Assert`, but returns a bool.
func (witness IsInitialized) IsValid() bool {
	return witness.isInitialized
}
