// Package model defines the stored entities, their create inputs and their
// sparse patches.
//
// Every entity field carries both a json tag (wire format) and a dynamodbav tag
// (stored attribute). Patches hold only pointer or nullable fields: a nil field
// is not part of the update, and each populated field becomes exactly one
// store.Change.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Timestamps holds the store-managed epoch-millisecond timestamps.
type Timestamps struct {
	CreatedAt int64 `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt int64 `json:"updatedAt" dynamodbav:"updatedAt"`
}

// SetTimestamps implements store.Timestamped.
func (t *Timestamps) SetTimestamps(createdAt, updatedAt int64) {
	t.CreatedAt = createdAt
	t.UpdatedAt = updatedAt
}

// ValidationError reports a missing or invalid input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Invalid returns a *ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NullableString is a patch field that distinguishes an absent key from an
// explicit JSON null. Set is true whenever the key was present.
type NullableString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *NullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n NullableString) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}

// Null returns a NullableString set to null.
func Null() NullableString {
	return NullableString{Set: true}
}

// Some returns a NullableString set to s.
func Some(s string) NullableString {
	return NullableString{Set: true, Value: &s}
}

func ptr[T any](v T) *T { return &v }
