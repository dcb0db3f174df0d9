// Package utils holds small helpers shared across packages and tests.
package utils

// Ptr returns a pointer to the given value.
func Ptr[T any](v T) *T {
	return &v
}
