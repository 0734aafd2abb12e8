// Package user contains all HTTP handlers related to the User resource.
//
// HANDLER PATTERN USED HERE — THE CLOSURE / FACTORY PATTERN:
// ────────────────────────────────────────────────────────────
// Go's router expects handler functions with the signature:
//
//	func(http.ResponseWriter, *http.Request)
//
// That signature has no room for extra parameters like a database.
// To inject dependencies we use a factory function that:
//  1. Accepts dependencies (the storage handle)
//  2. Returns a function with the exact signature the router needs
//
// Because the inner function "closes over" the outer parameters, it can
// access the store even after the factory call has returned.
// This is called a closure. Example:
//
//	router.HandleFunc("POST /users", user.New(store))
//	//                               ^^^^^^^^^^^^^^^
//	//                        New(store) is called ONCE at startup.
//	//                        It returns a handler func which is called
//	//                        on EVERY incoming request.
package user

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/aanand-mishra/users-api/internal/storage"
	"github.com/aanand-mishra/users-api/internal/types"
	"github.com/aanand-mishra/users-api/internal/utils/response"
)

// Pagination bounds for GET /users/.
// A request may narrow the page but never widen it past maxLimit —
// otherwise a single URL could drag the whole table into memory.
const (
	defaultSkip  = 0
	defaultLimit = 10
	maxLimit     = 100
)

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST /users and POST /users/
// Creates a new user from the JSON request body.
//
// Request body (JSON):
//
//	{ "name": "Alice", "email": "alice@example.com", "age": 30 }
//
// Age is optional and defaults to 0.
//
// Success response (201 Created) — the stored user, id included:
//
//	{ "id": 1, "name": "Alice", "email": "alice@example.com", "age": 30 }
//
// Error responses:
//
//	400 Bad Request           — empty body or malformed JSON
//	409 Conflict              — the email is already taken
//	422 Unprocessable Entity  — failed validation (missing name/email,
//	                            bad email syntax, negative age)
//	500 Internal              — any other storage error
//
// ─────────────────────────────────────────────────────────────────────────────
func New(store storage.Storage) http.HandlerFunc {
	// This is the factory function. It runs ONCE when the route is registered.
	// It captures `store` in the closure below.

	return func(w http.ResponseWriter, r *http.Request) {
		// Structured log: every request gets an Info log so we can trace
		// activity in production logs.
		slog.Info("creating a user")

		// ── Step 1: Decode JSON body into a User struct ───────────────
		var user types.User

		// json.NewDecoder reads from r.Body (the raw bytes sent by the client).
		// .Decode(&user) populates the user variable via its pointer.
		// Fields in the JSON are matched to struct fields using json:"..." tags.
		err := json.NewDecoder(r.Body).Decode(&user)

		if errors.Is(err, io.EOF) {
			// io.EOF means the body was completely empty — nothing to decode.
			response.WriteJSON(w, http.StatusBadRequest,
				response.GeneralError(errors.New("request body is empty")))
			return // stop further processing
		}

		if err != nil {
			// Any other decode error: malformed JSON, wrong types, etc.
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		// ── Step 2: Validate the decoded struct ───────────────────────
		// validator.New().Struct(v) checks all validate:"..." tags on v.
		// It returns nil if everything is valid, or a ValidationErrors
		// (which implements the error interface) if any rule fails.
		if err := validator.New().Struct(user); err != nil {
			// Type-assert the error to ValidationErrors so we can inspect
			// each individual field error (field name, broken tag, etc.).
			validateErrs := err.(validator.ValidationErrors)
			response.WriteJSON(w, http.StatusUnprocessableEntity,
				response.ValidationError(validateErrs))
			return
		}

		// ── Step 3: Persist to database ───────────────────────────────
		// We call the Storage interface method — not SQLite directly.
		// This keeps the handler database-agnostic. The id the client may
		// have sent is ignored; storage assigns the real one.
		created, err := store.CreateUser(r.Context(), user.Name, user.Email, user.Age)
		if err != nil {
			if errors.Is(err, storage.ErrDuplicateEmail) {
				// 409 Conflict, not 500: the request was well-formed, the
				// email is simply taken. The client can fix and retry.
				response.WriteJSON(w, http.StatusConflict,
					response.GeneralError(
						fmt.Errorf("email %q already exists", user.Email)))
				return
			}
			response.WriteJSON(w, http.StatusInternalServerError,
				response.GeneralError(err))
			return
		}

		slog.Info("user created", slog.Int64("id", created.ID))

		// ── Step 4: Return 201 Created with the stored user ───────────
		response.WriteJSON(w, http.StatusCreated, created)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetByID handles GET /users/{id}
// Fetches a single user by their primary key ID.
//
// Path parameter: {id} — must be a valid integer
//
// Success response (200 OK):
//
//	{ "id": 1, "name": "Alice", "email": "alice@example.com", "age": 30 }
//
// Error responses:
//
//	404 Not Found             — no user has that id
//	422 Unprocessable Entity  — id is not a valid integer
//	500 Internal              — database error
//
// ─────────────────────────────────────────────────────────────────────────────
func GetByID(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// r.PathValue("id") extracts the {id} segment from the URL.
		// This works because Go 1.22+ supports named path parameters in
		// the ServeMux pattern: "GET /users/{id}"
		id := r.PathValue("id")
		slog.Info("getting a user", slog.String("id", id))

		// The URL gives us a string; the database needs int64.
		// strconv.ParseInt(s, base, bitSize) converts string → int64.
		// base 10 = decimal, bitSize 64 = int64.
		intID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			// The client sent something like "/users/abc"
			response.WriteJSON(w, http.StatusUnprocessableEntity,
				response.GeneralError(errors.New("invalid id: must be an integer")))
			return
		}

		user, err := store.GetUserByID(r.Context(), intID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				response.WriteJSON(w, http.StatusNotFound,
					response.GeneralError(
						fmt.Errorf("user with id %d not found", intID)))
				return
			}
			slog.Error("error getting user",
				slog.String("id", id),
				slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusInternalServerError,
				response.GeneralError(err))
			return
		}

		response.WriteJSON(w, http.StatusOK, user)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetList handles GET /users and GET /users/
// Returns a page of users, or a single user when ?user_id= is present.
//
// Query parameters:
//
//	user_id — optional; when set, look up exactly that user
//	skip    — offset into the id-ordered list (default 0, must be ≥ 0)
//	limit   — page size (default 10, must be in [1,100])
//
// Success response (200 OK) — always a JSON array:
//
//	[
//	  { "id": 1, "name": "Alice", ... },
//	  { "id": 2, "name": "Bob",   ... }
//	]
//
// With user_id the array holds exactly one element; skip and limit are
// validated but their values are ignored for the lookup.
//
// Returns an empty array [] (not null) when the page is empty.
//
// Error responses:
//
//	404 Not Found             — user_id given but no such user
//	422 Unprocessable Entity  — non-integer or out-of-range parameter
//	500 Internal              — database error
//
// ─────────────────────────────────────────────────────────────────────────────
func GetList(store storage.Storage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("listing users")

		// ── Step 1: Parse and validate the pagination parameters ──────
		// These are checked even when user_id short-circuits the listing:
		// a request with broken parameters is rejected as a whole, it
		// does not half-work.
		skip, err := queryInt(r, "skip", defaultSkip)
		if err != nil {
			response.WriteJSON(w, http.StatusUnprocessableEntity,
				response.GeneralError(err))
			return
		}
		if skip < 0 {
			response.WriteJSON(w, http.StatusUnprocessableEntity,
				response.GeneralError(errors.New("skip must be greater than or equal to 0")))
			return
		}

		limit, err := queryInt(r, "limit", defaultLimit)
		if err != nil {
			response.WriteJSON(w, http.StatusUnprocessableEntity,
				response.GeneralError(err))
			return
		}
		if limit < 1 || limit > maxLimit {
			response.WriteJSON(w, http.StatusUnprocessableEntity,
				response.GeneralError(
					fmt.Errorf("limit must be between 1 and %d", maxLimit)))
			return
		}

		// ── Step 2: Single-user lookup when user_id is present ────────
		// Has, not Get: "?user_id=" is a present-but-empty id, which
		// must fail the integer check rather than silently fall back to
		// the listing.
		if r.URL.Query().Has("user_id") {
			rawID := r.URL.Query().Get("user_id")
			userID, err := strconv.ParseInt(rawID, 10, 64)
			if err != nil {
				response.WriteJSON(w, http.StatusUnprocessableEntity,
					response.GeneralError(errors.New("invalid user_id: must be an integer")))
				return
			}

			user, err := store.GetUserByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					response.WriteJSON(w, http.StatusNotFound,
						response.GeneralError(
							fmt.Errorf("user with id %d not found", userID)))
					return
				}
				slog.Error("error getting user",
					slog.String("user_id", rawID),
					slog.String("error", err.Error()))
				response.WriteJSON(w, http.StatusInternalServerError,
					response.GeneralError(err))
				return
			}

			// A one-element array, so the response shape matches the
			// listing case and clients can always iterate.
			response.WriteJSON(w, http.StatusOK, []types.User{user})
			return
		}

		// ── Step 3: Regular paginated listing ─────────────────────────
		users, err := store.ListUsers(r.Context(), skip, limit)
		if err != nil {
			slog.Error("error listing users", slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusInternalServerError,
				response.GeneralError(err))
			return
		}

		response.WriteJSON(w, http.StatusOK, users)
	}
}

// queryInt reads an optional integer query parameter, returning def
// when the parameter is absent and an error when it is present but not
// an integer. An empty value ("?skip=") counts as present and fails the
// integer check.
func queryInt(r *http.Request, key string, def int) (int, error) {
	if !r.URL.Query().Has(key) {
		return def, nil
	}

	value, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0, fmt.Errorf("query parameter %s must be an integer", key)
	}
	return value, nil
}
