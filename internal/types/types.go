// Package types holds all shared data structures (models) used across
// the application. Keeping them in one place prevents import cycles —
// handlers, storage, and utils can all import types without depending
// on each other.
package types

// User represents a user record in our system.
//
// Struct tags serve three purposes:
//
//  1. json:"..."  — controls how the field appears when encoded to JSON
//     (lowercase names match REST API conventions).
//     Without this tag Go uses the exported field name, e.g. "Name".
//
//  2. db:"..." — column name used by sqlx when scanning rows into the
//     struct. Matches the users table schema.
//
//  3. validate:"..." — rules checked by the go-playground/validator
//     package on the create path:
//     "required"   — field must be non-zero / non-empty
//     "email"      — field must be a syntactically valid email address
//     "gte=0"      — age may not be negative; a missing age stays at
//     the zero value, which is the documented default
type User struct {
	ID    int64  `json:"id"    db:"id"`
	Name  string `json:"name"  db:"name"  validate:"required"`
	Email string `json:"email" db:"email" validate:"required,email"`
	Age   int    `json:"age"   db:"age"   validate:"gte=0"`
}
