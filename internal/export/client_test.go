package export_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/users-api/internal/export"
)

// newUsersServer fakes the users-api listing endpoint: it serves a
// fixed population of users, honouring skip and limit, and counts how
// many requests it received.
func newUsersServer(t *testing.T, total int, hits *int32) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)

		skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		page := make([]export.User, 0, limit)
		for i := skip; i < total && i < skip+limit; i++ {
			page = append(page, export.User{
				ID:    int64(i + 1),
				Name:  fmt.Sprintf("User %d", i+1),
				Email: fmt.Sprintf("user%d@example.com", i+1),
				Age:   20,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(page)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchAllPaginates(t *testing.T) {
	var hits int32
	srv := newUsersServer(t, 120, &hits)

	client := export.NewClient(srv.URL+"/users/", export.WithPageLimit(50))

	users, err := client.FetchAll(context.Background())
	require.NoError(t, err)

	require.Len(t, users, 120)
	assert.Equal(t, int64(1), users[0].ID)
	assert.Equal(t, int64(120), users[119].ID)

	// 50 + 50 + 20: the short third page ends the walk without an
	// extra request for an empty page.
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFetchAllStopsOnEmptyPage(t *testing.T) {
	var hits int32
	srv := newUsersServer(t, 100, &hits)

	client := export.NewClient(srv.URL+"/users/", export.WithPageLimit(50))

	users, err := client.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 100)

	// Two full pages leave the end ambiguous, so a third request sees
	// the empty page.
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFetchAllEmptyTable(t *testing.T) {
	var hits int32
	srv := newUsersServer(t, 0, &hits)

	client := export.NewClient(srv.URL + "/users/")

	users, err := client.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetchAllRetriesThenGivesUp(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	client := export.NewClient(srv.URL+"/users/",
		export.WithRetryPolicy(1, time.Millisecond, 2*time.Millisecond))

	_, err := client.FetchAll(context.Background())
	require.Error(t, err)

	// Initial attempt plus one retry.
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestFetchAllDoesNotRetry404(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "no such route", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	client := export.NewClient(srv.URL + "/wrong/")

	_, err := client.FetchAll(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "status 404")

	// 404 is not transient; the client must not hammer the server.
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetchAllHonoursCancellation(t *testing.T) {
	var hits int32
	srv := newUsersServer(t, 10, &hits)

	client := export.NewClient(srv.URL + "/users/")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchAll(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
