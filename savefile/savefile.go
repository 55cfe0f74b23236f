// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package savefile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

type Store struct {
	dir string
}

// New returns a store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create save dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(accountID int64) string {
	return filepath.Join(s.dir, strconv.FormatInt(accountID, 10)+".dat")
}

// Read returns the account's save, or "" when it has none.
func (s *Store) Read(accountID int64) (string, error) {
	data, err := os.ReadFile(s.path(accountID))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read save %d: %w", accountID, err)
	}
	return string(data), nil
}

// Write replaces the account's save. The old save survives a failed write.
func (s *Store) Write(accountID int64, data string) error {
	p, err := s.Stage(accountID, data)
	if err != nil {
		return err
	}
	return p.Commit()
}

// Pending is a save written to a temp file but not yet in place.
type Pending struct {
	accountID int64
	tmp       string
	dest      string
	done      bool
}

// Stage writes data next to the account's save without replacing it.
// The caller must Commit or Discard the result.
func (s *Store) Stage(accountID int64, data string) (*Pending, error) {
	tmp, err := os.CreateTemp(s.dir, ".save-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp save: %w", err)
	}

	if _, err := tmp.WriteString(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to write save %d: %w", accountID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("failed to close save %d: %w", accountID, err)
	}
	return &Pending{accountID: accountID, tmp: tmp.Name(), dest: s.path(accountID)}, nil
}

// Commit moves the staged save into place.
func (p *Pending) Commit() error {
	if p.done {
		return nil
	}
	p.done = true
	if err := os.Rename(p.tmp, p.dest); err != nil {
		os.Remove(p.tmp)
		return fmt.Errorf("failed to replace save %d: %w", p.accountID, err)
	}
	return nil
}

// Discard drops the staged save. It is a no-op after Commit.
func (p *Pending) Discard() {
	if p.done {
		return
	}
	p.done = true
	os.Remove(p.tmp)
}
