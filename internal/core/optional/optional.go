// Package optional carries the three states of a field in a partial update:
// absent from the payload, explicitly null, or set to a value.
package optional

import (
	"bytes"
	"encoding/json"
)

type Field[T any] struct {
	// Set reports whether the key was present in the payload.
	Set bool
	// Valid reports whether the present value was non-null.
	Valid bool
	Value T
}

func Of[T any](v T) Field[T] {
	return Field[T]{Set: true, Valid: true, Value: v}
}

func Null[T any]() Field[T] {
	return Field[T]{Set: true}
}

// UnmarshalJSON is only invoked by encoding/json when the key is present,
// so an absent key leaves the zero Field (Set == false).
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		f.Valid = false
		f.Value = zero
		return nil
	}
	if err := json.Unmarshal(data, &f.Value); err != nil {
		return err
	}
	f.Valid = true
	return nil
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// IsNull reports an explicit null.
func (f Field[T]) IsNull() bool {
	return f.Set && !f.Valid
}

// Ptr returns nil for absent or null, else a pointer to a copy of the value.
func (f Field[T]) Ptr() *T {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

// Or returns the value when valid and fallback otherwise.
func (f Field[T]) Or(fallback T) T {
	if f.Valid {
		return f.Value
	}
	return fallback
}
