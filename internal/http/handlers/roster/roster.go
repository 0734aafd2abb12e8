// Package roster contains the HTTP handlers for the flat-file user
// roster. Unlike the JSON API under handlers/user, this surface speaks
// plain text and takes its input from query parameters — it exists for
// quick curl/browser use, not for programmatic clients.
//
// The handlers follow the same closure/factory pattern as the JSON API:
// each factory takes the storage handle once at startup and returns the
// http.HandlerFunc the router needs.
package roster

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aanand-mishra/users-api/internal/storage"
)

// List handles GET /users
// Writes the whole roster as plain text, one user per line:
//
//	Users:
//	ID: 1, Name: Alice, Email: alice@example.com
//	ID: 2, Name: Bob, Email: bob@example.com
func List(store storage.Roster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("listing roster users")

		fmt.Fprintf(w, "Users:\n")
		for _, user := range store.Users() {
			fmt.Fprintf(w, "ID: %d, Name: %s, Email: %s\n", user.ID, user.Name, user.Email)
		}
	}
}

// Add handles GET /add and POST /add
// Creates a user from the name and email query parameters:
//
//	/add?name=Alice&email=alice@example.com
//
// Both parameters are required; the roster does no further validation —
// no email syntax check, no uniqueness. Success returns:
//
//	User added: ID 1, Name Alice, Email alice@example.com
//
// Errors are plain text too: 400 when a parameter is missing, 500 when
// the roster file cannot be written.
func Add(store storage.Roster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		name := query.Get("name")
		email := query.Get("email")

		slog.Info("adding roster user", slog.String("name", name))

		if name == "" || email == "" {
			http.Error(w, "Name and Email are required", http.StatusBadRequest)
			return
		}

		user, err := store.AddUser(name, email)
		if err != nil {
			slog.Error("failed to add roster user",
				slog.String("name", name),
				slog.String("error", err.Error()))
			http.Error(w, "Failed to add user", http.StatusInternalServerError)
			return
		}

		fmt.Fprintf(w, "User added: ID %d, Name %s, Email %s\n", user.ID, user.Name, user.Email)
	}
}
