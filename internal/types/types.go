// Package types holds all shared data structures (models) used across
// the application. Keeping them in one place prevents import cycles —
// handlers, storage, and utils can all import types without depending
// on each other.
package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Hero is a stored hero record. It is also the public (output) shape:
// ID is always populated, and Age encodes as null when unset.
type Hero struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	SecretName string `json:"secret_name"`
	Age        *int   `json:"age"`
}

// HeroPublic is what update returns. It is the same shape as Hero.
type HeroPublic = Hero

// MaxHeroID is the largest id a client may choose: the largest integer a
// JSON number holds exactly. Keeping client ids well below the int64
// ceiling leaves room for the ids the database generates after them.
// The lte bound on HeroCreate.ID must match it.
const MaxHeroID int64 = 1<<53 - 1

// HeroCreate is the request body for POST /heroes/.
//
// Struct tags:
//
//  1. json:"..."     — wire names, snake_case as the API has always used.
//  2. validate:"..." — go-playground/validator rules. "omitempty" on the
//     pointer fields lets the client leave them out entirely.
type HeroCreate struct {
	ID         *int64 `json:"id"          validate:"omitempty,gt=0,lte=9007199254740991"`
	Name       string `json:"name"        validate:"required"`
	SecretName string `json:"secret_name" validate:"required"`
	Age        *int   `json:"age"         validate:"omitempty,gte=0"`
}

// Hero converts the create payload into a record. ID is zero when the
// client did not pick one.
func (c HeroCreate) Hero() Hero {
	h := Hero{Name: c.Name, SecretName: c.SecretName, Age: c.Age}
	if c.ID != nil {
		h.ID = *c.ID
	}
	return h
}

// Optional is a JSON field that remembers whether the client sent it.
// Set is false when the key was absent. Valid is false when the key
// was present with a literal null.
type Optional[T any] struct {
	Set   bool
	Valid bool
	Value T
}

// Some returns a present, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Valid: true, Value: v}
}

// Null returns a present Optional holding an explicit null.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// UnmarshalJSON is only invoked by encoding/json when the key exists,
// which is what makes Set meaningful.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.Valid = false
		o.Value = zero
		return nil
	}
	if err := json.Unmarshal(data, &o.Value); err != nil {
		return err
	}
	o.Valid = true
	return nil
}

// HeroUpdate is the merge-patch body for PATCH /heroes/{id}. Fields the
// client leaves out are not touched. The id is never patchable, so
// there is no field for it.
type HeroUpdate struct {
	Name       Optional[string] `json:"name"`
	SecretName Optional[string] `json:"secret_name"`
	Age        Optional[int]    `json:"age"`
}

// ErrInvalidUpdate is wrapped by every error HeroUpdate.Validate returns.
var ErrInvalidUpdate = errors.New("invalid update")

// Validate rejects nulls and empty values for the required columns and
// negative ages. Age may be null, which clears it.
func (u HeroUpdate) Validate() error {
	var problems []string

	checkRequired := func(field string, o Optional[string]) {
		if !o.Set {
			return
		}
		if !o.Valid {
			problems = append(problems, fmt.Sprintf("field %s may not be null", field))
			return
		}
		if o.Value == "" {
			problems = append(problems, fmt.Sprintf("field %s is required", field))
		}
	}
	checkRequired("name", u.Name)
	checkRequired("secret_name", u.SecretName)

	if u.Age.Set && u.Age.Valid && u.Age.Value < 0 {
		problems = append(problems, "field age must be greater than or equal to 0")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidUpdate, strings.Join(problems, ", "))
	}
	return nil
}

// Apply merges the present fields into h.
func (u HeroUpdate) Apply(h *Hero) {
	if u.Name.Set && u.Name.Valid {
		h.Name = u.Name.Value
	}
	if u.SecretName.Set && u.SecretName.Valid {
		h.SecretName = u.SecretName.Value
	}
	if u.Age.Set {
		if u.Age.Valid {
			age := u.Age.Value
			h.Age = &age
		} else {
			h.Age = nil
		}
	}
}
