// Package file provides a flat-file implementation of the storage.Roster
// interface.
//
// The on-disk format is deliberately primitive: one user per line,
// comma-separated — "id,name,email". The whole file is loaded into
// memory at startup and rewritten after every successful add. That is
// plenty for a roster of a few thousand users and keeps the store
// dependency-free; anything bigger belongs in the sqlite store.
//
// Note the format cannot represent names or emails that themselves
// contain commas or newlines; the loader skips lines that do not split
// into exactly three parts.
package file

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/aanand-mishra/users-api/internal/types"
)

// Store keeps the full user list in memory and mirrors it to a text
// file. The mutex serialises every operation: handlers run on separate
// goroutines, and both the slice and the file must change together.
type Store struct {
	mu     sync.Mutex
	path   string
	users  []types.User
	nextID int64
}

// New loads the roster file at path and returns a ready-to-use *Store.
//
// A missing file is not an error — the store simply starts empty and
// the file appears on the first add. Malformed lines (wrong field
// count, non-numeric id) are skipped with a warning rather than
// aborting startup, so one bad line cannot take the service down.
func New(path string) (*Store, error) {
	s := &Store{
		path:   path,
		users:  []types.User{},
		nextID: 1,
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("roster file does not exist, starting with empty user list",
				slog.String("path", path))
			return s, nil
		}
		return nil, fmt.Errorf("file.New: open %s: %w", path, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("error closing roster file",
				slog.String("path", path),
				slog.String("error", closeErr.Error()))
		}
	}()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()

		parts := strings.Split(line, ",")
		if len(parts) != 3 {
			slog.Warn("skipping malformed roster line",
				slog.String("line", line))
			continue
		}

		id, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			slog.Warn("skipping roster line with non-numeric id",
				slog.String("line", line))
			continue
		}

		s.users = append(s.users, types.User{ID: id, Name: parts[1], Email: parts[2]})

		// nextID must clear every id already on disk, or a restart
		// would hand out duplicates.
		if id >= s.nextID {
			s.nextID = id + 1
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("file.New: read %s: %w", path, err)
	}

	return s, nil
}

// AddUser assigns the next id, appends the user, and rewrites the file.
// If the write fails the append is rolled back, so memory and disk
// never disagree about which users exist.
func (s *Store) AddUser(name string, email string) (types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user := types.User{ID: s.nextID, Name: name, Email: email}
	s.users = append(s.users, user)

	if err := s.saveLocked(); err != nil {
		s.users = s.users[:len(s.users)-1]
		return types.User{}, fmt.Errorf("AddUser: %w", err)
	}

	s.nextID++
	return user, nil
}

// Users returns a copy of the current user list in insertion order.
// A copy, because the caller keeps the slice after the lock is
// released — handing out the internal one would be a data race.
func (s *Store) Users() []types.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]types.User, len(s.users))
	copy(users, s.users)
	return users
}

// saveLocked rewrites the whole roster file from the in-memory list.
// Callers must hold s.mu. os.Create truncates, so the file always ends
// up as exactly the current list — no appends, no partial state.
func (s *Store) saveLocked() error {
	file, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create %s: %w", s.path, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("error closing roster file",
				slog.String("path", s.path),
				slog.String("error", closeErr.Error()))
		}
	}()

	for _, user := range s.users {
		if _, err := fmt.Fprintf(file, "%d,%s,%s\n", user.ID, user.Name, user.Email); err != nil {
			return fmt.Errorf("write user %d to %s: %w", user.ID, s.path, err)
		}
	}
	return nil
}
