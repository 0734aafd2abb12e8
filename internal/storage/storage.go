// Package storage defines the contracts that any persistence backend
// must satisfy to work with this application, together with the error
// values the backends report through.
//
// WHY INTERFACES?
// ───────────────
// Handlers (HTTP layer) should not know or care which store they are
// talking to. By depending only on these interfaces:
//
//   - Switching backends = implement the interface for the new store,
//     change one line in main.go. Zero handler changes.
//
//   - Writing tests = pass a fake/mock that satisfies the interface.
//     No real database needed for unit tests.
//
// This is the Dependency Inversion Principle in practice.
package storage

import (
	"context"
	"errors"

	"github.com/aanand-mishra/users-api/internal/types"
)

// Sentinel errors returned by storage implementations. Handlers match
// them with errors.Is to pick the HTTP status; anything else is treated
// as an internal storage failure.
var (
	// ErrNotFound reports that no user exists for the requested id.
	ErrNotFound = errors.New("user not found")

	// ErrDuplicateEmail reports that the email is already taken. The
	// users table enforces this with a UNIQUE constraint, so concurrent
	// creates serialize through the database rather than through any
	// application-level locking.
	ErrDuplicateEmail = errors.New("email already exists")
)

// Storage is the database contract behind the JSON API.
// Any concrete type that implements ALL of these methods automatically
// satisfies this interface — Go does this implicitly (no "implements"
// keyword required).
type Storage interface {
	// CreateUser inserts a new user record and returns it with the
	// auto-generated primary-key id filled in. Returns ErrDuplicateEmail
	// (wrapped) when the email is already taken.
	CreateUser(ctx context.Context, name string, email string, age int) (types.User, error)

	// GetUserByID fetches a single user by primary key.
	// Returns ErrNotFound (wrapped) when no row matches.
	GetUserByID(ctx context.Context, id int64) (types.User, error)

	// ListUsers returns up to limit users ordered by ascending id,
	// starting after the first skip rows. Returns an empty slice
	// (not nil) when no users remain past skip.
	ListUsers(ctx context.Context, skip, limit int) ([]types.User, error)
}

// Roster is the minimal contract of the flat-file listing service. It
// predates the database-backed API and keeps the original, smaller
// record shape: no age, no pagination, no uniqueness guarantee.
type Roster interface {
	// AddUser appends a new user with the next free id and persists the
	// whole roster.
	AddUser(name string, email string) (types.User, error)

	// Users returns a copy of every known user in insertion order.
	Users() []types.User
}
