// Package optional distinguishes "absent", "null" and "value" for JSON fields
// in partial updates.
package optional

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is a JSON field that remembers whether it was present in the payload.
// The zero value is absent.
type Field[T any] struct {
	Set  bool
	Null bool
	Val  T
}

// Some returns a present, non-null field.
func Some[T any](v T) Field[T] {
	return Field[T]{Set: true, Val: v}
}

// Null returns a present field explicitly set to null.
func Null[T any]() Field[T] {
	return Field[T]{Set: true, Null: true}
}

// UnmarshalJSON is only invoked for keys present in the payload, so any call
// marks the field as set.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.Null = true
		var zero T
		f.Val = zero
		return nil
	}
	f.Null = false
	return json.Unmarshal(data, &f.Val)
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Set || f.Null {
		return []byte("null"), nil
	}
	return json.Marshal(f.Val)
}

// Ptr returns nil for null and a pointer to a copy of the value otherwise.
// It must only be used when Set is true.
func (f Field[T]) Ptr() *T {
	if f.Null {
		return nil
	}
	v := f.Val
	return &v
}

// Apply writes the field onto dst when it was present in the payload.
func (f Field[T]) Apply(dst **T) {
	if f.Set {
		*dst = f.Ptr()
	}
}

func (f Field[T]) String() string {
	switch {
	case !f.Set:
		return "<absent>"
	case f.Null:
		return "null"
	default:
		return fmt.Sprintf("%v", f.Val)
	}
}
