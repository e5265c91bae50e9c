// Package ptr has helpers to take pointers of values.
package ptr

// To returns a pointer to the given value.
func To[T any](v T) *T {
	return &v
}
