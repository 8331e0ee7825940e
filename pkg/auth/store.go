// Package auth implements the flat-file credential table and the
// single-attempt authentication prelude that gates every session.
package auth

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/driftfs/driftfs/internal/logger"
)

// seedCredentials are written to the credentials file when it does not
// exist yet, so a fresh install has something to log in with.
var seedCredentials = []struct{ username, password string }{
	{"user1", "pass1"},
	{"user2", "pass2"},
}

// Store holds the username to password mapping. It is loaded once at
// server start and never mutated afterwards, so lookups need no locking.
type Store struct {
	users map[string]string
}

// Load reads a credentials file of "username:password" lines.
//
// If the file does not exist it is seeded with two sample entries and the
// seeded table is returned. Blank lines are skipped; a line without a colon
// is a hard error since silently dropping credentials hides typos.
func Load(path string) (*Store, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		logger.Warn("Credentials file not found, seeding sample credentials", "path", path)
		return seed(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open credentials file: %w", err)
	}
	defer f.Close()

	users := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		username, password, ok := strings.Cut(line, ":")
		if !ok || username == "" {
			return nil, fmt.Errorf("malformed credentials line %d in %s", lineNo, path)
		}
		users[username] = password
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	logger.Info("Credentials loaded", "path", path, "users", len(users))
	return &Store{users: users}, nil
}

// seed writes the sample credentials file and returns the matching store.
func seed(path string) (*Store, error) {
	var b strings.Builder
	users := make(map[string]string, len(seedCredentials))
	for _, c := range seedCredentials {
		fmt.Fprintf(&b, "%s:%s\n", c.username, c.password)
		users[c.username] = c.password
	}

	// 0600: the table holds plaintext passwords.
	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return nil, fmt.Errorf("seed credentials file: %w", err)
	}
	return &Store{users: users}, nil
}

// Verify reports whether the username exists and the password matches.
func (s *Store) Verify(username, password string) bool {
	stored, ok := s.users[username]
	return ok && stored == password
}

// Len returns the number of loaded users.
func (s *Store) Len() int {
	return len(s.users)
}
