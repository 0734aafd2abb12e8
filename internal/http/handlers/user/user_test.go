package user_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/users-api/internal/config"
	"github.com/aanand-mishra/users-api/internal/http/handlers/user"
	"github.com/aanand-mishra/users-api/internal/storage"
	"github.com/aanand-mishra/users-api/internal/storage/sqlite"
	"github.com/aanand-mishra/users-api/internal/types"
	"github.com/aanand-mishra/users-api/internal/utils/response"
)

// newTestRouter wires the handlers to a fresh in-memory store with the
// same route table the server uses, so tests exercise routing (method
// patterns, path values) as well as the handlers themselves.
func newTestRouter(t *testing.T) *http.ServeMux {
	t.Helper()

	cfg := &config.Config{
		Env:         "dev",
		StoragePath: ":memory:",
		HTTPServer:  config.HTTPServer{Addr: "localhost:0"},
	}
	store, err := sqlite.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return newRouter(store)
}

func newRouter(store storage.Storage) *http.ServeMux {
	router := http.NewServeMux()
	router.HandleFunc("POST /users", user.New(store))
	router.HandleFunc("POST /users/{$}", user.New(store))
	router.HandleFunc("GET /users", user.GetList(store))
	router.HandleFunc("GET /users/{$}", user.GetList(store))
	router.HandleFunc("GET /users/{id}", user.GetByID(store))
	return router
}

func doRequest(router *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeUser(t *testing.T, rec *httptest.ResponseRecorder) types.User {
	t.Helper()
	var u types.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
	return u
}

func decodeUsers(t *testing.T, rec *httptest.ResponseRecorder) []types.User {
	t.Helper()
	var users []types.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	return users
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, response.StatusError, resp.Status)
	return resp
}

func createUser(t *testing.T, router *http.ServeMux, body string) types.User {
	t.Helper()
	rec := doRequest(router, http.MethodPost, "/users/", body)
	require.Equal(t, http.StatusCreated, rec.Code, "create failed: %s", rec.Body.String())
	return decodeUser(t, rec)
}

func TestCreateUserHandler(t *testing.T) {
	router := newTestRouter(t)

	t.Run("valid body returns 201 and the stored user", func(t *testing.T) {
		rec := doRequest(router, http.MethodPost, "/users/",
			`{"name":"Alice","email":"alice@x.com","age":28}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		got := decodeUser(t, rec)
		assert.Equal(t, int64(1), got.ID)
		assert.Equal(t, "Alice", got.Name)
		assert.Equal(t, "alice@x.com", got.Email)
		assert.Equal(t, 28, got.Age)
	})

	t.Run("age is optional and defaults to zero", func(t *testing.T) {
		rec := doRequest(router, http.MethodPost, "/users/",
			`{"name":"Bob","email":"bob@x.com"}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		got := decodeUser(t, rec)
		assert.Equal(t, 0, got.Age)
	})

	t.Run("empty body is 400", func(t *testing.T) {
		rec := doRequest(router, http.MethodPost, "/users/", "")

		require.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, "request body is empty", resp.Error)
	})

	t.Run("malformed JSON is 400", func(t *testing.T) {
		rec := doRequest(router, http.MethodPost, "/users/", `{"name": oops`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		decodeError(t, rec)
	})

	t.Run("missing name is 422", func(t *testing.T) {
		rec := doRequest(router, http.MethodPost, "/users/",
			`{"email":"carol@x.com"}`)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		resp := decodeError(t, rec)
		assert.Contains(t, resp.Error, "field Name is required")
	})

	t.Run("bad email syntax is 422", func(t *testing.T) {
		rec := doRequest(router, http.MethodPost, "/users/",
			`{"name":"Carol","email":"not-an-email"}`)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		resp := decodeError(t, rec)
		assert.Contains(t, resp.Error, "field Email must be a valid email address")
	})

	t.Run("negative age is 422", func(t *testing.T) {
		rec := doRequest(router, http.MethodPost, "/users/",
			`{"name":"Carol","email":"carol@x.com","age":-5}`)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		resp := decodeError(t, rec)
		assert.Contains(t, resp.Error, "field Age must be at least 0")
	})

	t.Run("duplicate email is 409", func(t *testing.T) {
		createUser(t, router, `{"name":"Dave","email":"dave@x.com","age":40}`)

		rec := doRequest(router, http.MethodPost, "/users/",
			`{"name":"Dave Again","email":"dave@x.com","age":41}`)

		require.Equal(t, http.StatusConflict, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, `email "dave@x.com" already exists`, resp.Error)
	})
}

func TestGetByIDHandler(t *testing.T) {
	router := newTestRouter(t)
	alice := createUser(t, router, `{"name":"Alice","email":"alice@x.com","age":28}`)

	t.Run("returns the user", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, fmt.Sprintf("/users/%d", alice.ID), "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, alice, decodeUser(t, rec))
	})

	t.Run("unknown id is 404", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/users/999", "")

		require.Equal(t, http.StatusNotFound, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, "user with id 999 not found", resp.Error)
	})

	t.Run("non-integer id is 422", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/users/abc", "")

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, "invalid id: must be an integer", resp.Error)
	})
}

func TestGetListHandler(t *testing.T) {
	router := newTestRouter(t)
	alice := createUser(t, router, `{"name":"Alice","email":"alice@x.com","age":28}`)
	bob := createUser(t, router, `{"name":"Bob","email":"bob@x.com","age":32}`)

	t.Run("default page returns all users ordered by id", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/users/", "")

		require.Equal(t, http.StatusOK, rec.Code)
		users := decodeUsers(t, rec)
		require.Len(t, users, 2)
		assert.Equal(t, alice, users[0])
		assert.Equal(t, bob, users[1])
	})

	t.Run("skip and limit narrow the page", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/users/?skip=1&limit=1", "")

		require.Equal(t, http.StatusOK, rec.Code)
		users := decodeUsers(t, rec)
		require.Len(t, users, 1)
		assert.Equal(t, bob, users[0])
	})

	t.Run("page past the end is an empty array, not null", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/users/?skip=50", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})

	t.Run("user_id returns a single-element array", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet,
			fmt.Sprintf("/users/?user_id=%d", bob.ID), "")

		require.Equal(t, http.StatusOK, rec.Code)
		users := decodeUsers(t, rec)
		require.Len(t, users, 1)
		assert.Equal(t, bob, users[0])
	})

	t.Run("user_id ignores pagination values", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet,
			fmt.Sprintf("/users/?user_id=%d&skip=50&limit=1", alice.ID), "")

		require.Equal(t, http.StatusOK, rec.Code)
		users := decodeUsers(t, rec)
		require.Len(t, users, 1)
		assert.Equal(t, alice, users[0])
	})

	t.Run("unknown user_id is 404", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/users/?user_id=999", "")

		require.Equal(t, http.StatusNotFound, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, "user with id 999 not found", resp.Error)
	})

	t.Run("non-integer user_id is 422", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/users/?user_id=abc", "")

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, "invalid user_id: must be an integer", resp.Error)
	})

	t.Run("parameter validation", func(t *testing.T) {
		tests := []struct {
			name    string
			target  string
			wantErr string
		}{
			{
				name:    "negative skip",
				target:  "/users/?skip=-1",
				wantErr: "skip must be greater than or equal to 0",
			},
			{
				name:    "non-integer skip",
				target:  "/users/?skip=abc",
				wantErr: "query parameter skip must be an integer",
			},
			{
				name:    "zero limit",
				target:  "/users/?limit=0",
				wantErr: "limit must be between 1 and 100",
			},
			{
				name:    "limit above the cap",
				target:  "/users/?limit=101",
				wantErr: "limit must be between 1 and 100",
			},
			{
				name:    "non-integer limit",
				target:  "/users/?limit=abc",
				wantErr: "query parameter limit must be an integer",
			},
			{
				name:    "empty skip",
				target:  "/users/?skip=",
				wantErr: "query parameter skip must be an integer",
			},
			{
				name:    "empty limit",
				target:  "/users/?limit=",
				wantErr: "query parameter limit must be an integer",
			},
			{
				name:    "empty user_id",
				target:  "/users/?user_id=",
				wantErr: "invalid user_id: must be an integer",
			},
			{
				name:    "broken skip rejected even with user_id",
				target:  "/users/?user_id=1&skip=-1",
				wantErr: "skip must be greater than or equal to 0",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := doRequest(router, http.MethodGet, tt.target, "")

				require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
				resp := decodeError(t, rec)
				assert.Equal(t, tt.wantErr, resp.Error)
			})
		}
	})
}

// Both spellings of the collection path must serve directly: a subtree
// route would answer /users with a 301, which clients do not replay for
// POST bodies, and would let a POST to an id path reach the create
// handler.
func TestCollectionPathSpellings(t *testing.T) {
	router := newTestRouter(t)
	alice := createUser(t, router, `{"name":"Alice","email":"alice@x.com","age":28}`)

	t.Run("create without trailing slash", func(t *testing.T) {
		rec := doRequest(router, http.MethodPost, "/users",
			`{"name":"Bob","email":"bob@x.com","age":32}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, int64(2), decodeUser(t, rec).ID)
	})

	t.Run("list without trailing slash", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/users?skip=0&limit=10", "")

		require.Equal(t, http.StatusOK, rec.Code)
		users := decodeUsers(t, rec)
		require.NotEmpty(t, users)
		assert.Equal(t, alice, users[0])
	})

	t.Run("create on an id path is rejected", func(t *testing.T) {
		before := listAll(t, router)

		rec := doRequest(router, http.MethodPost, "/users/123",
			`{"name":"Carol","email":"carol@x.com"}`)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

		// And nothing was inserted under some other id.
		assert.Equal(t, before, listAll(t, router))
	})

	t.Run("deeper paths are 404", func(t *testing.T) {
		rec := doRequest(router, http.MethodGet, "/users/1/reports", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func listAll(t *testing.T, router *http.ServeMux) []types.User {
	t.Helper()
	rec := doRequest(router, http.MethodGet, "/users/?limit=100", "")
	require.Equal(t, http.StatusOK, rec.Code)
	return decodeUsers(t, rec)
}

// failingStore satisfies storage.Storage and fails every call, for
// exercising the 500 paths without a broken database.
type failingStore struct{}

var errStorageDown = errors.New("storage offline")

func (failingStore) CreateUser(context.Context, string, string, int) (types.User, error) {
	return types.User{}, errStorageDown
}

func (failingStore) GetUserByID(context.Context, int64) (types.User, error) {
	return types.User{}, errStorageDown
}

func (failingStore) ListUsers(context.Context, int, int) ([]types.User, error) {
	return nil, errStorageDown
}

func TestStorageFailuresAre500(t *testing.T) {
	router := newRouter(failingStore{})

	tests := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{"create", http.MethodPost, "/users/", `{"name":"Alice","email":"alice@x.com"}`},
		{"get by id", http.MethodGet, "/users/1", ""},
		{"list", http.MethodGet, "/users/", ""},
		{"get via user_id", http.MethodGet, "/users/?user_id=1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(router, tt.method, tt.target, tt.body)

			require.Equal(t, http.StatusInternalServerError, rec.Code)
			resp := decodeError(t, rec)
			assert.Contains(t, resp.Error, "storage offline")
		})
	}
}
