package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidName marks a filename that could escape the user directory.
var ErrInvalidName = errors.New("invalid filename")

// cleanName validates that name is a single path element: no separators,
// no parent references, no NUL. Stored files live flat under the user
// directory, so anything else is rejected at this boundary.
func cleanName(name string) (string, error) {
	switch name {
	case "", ".", "..":
		return "", ErrInvalidName
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return "", ErrInvalidName
	}
	return name, nil
}

// userDir resolves and creates the per-user storage directory. Usernames
// pass the same single-element check as filenames so a hostile credentials
// entry cannot point outside the storage root.
func userDir(root, username string) (string, error) {
	if _, err := cleanName(username); err != nil {
		return "", fmt.Errorf("unusable username %q: %w", username, err)
	}

	dir := filepath.Join(root, username)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create user directory: %w", err)
	}
	return dir, nil
}

// listFiles returns the names of regular files directly under dir,
// non-recursively.
func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read user directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
