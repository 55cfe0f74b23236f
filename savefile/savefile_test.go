// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package savefile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadMissing(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	data, err := s.Read(42)
	if err != nil {
		t.Fatalf("Expected no error for a missing save, got %v", err)
	}
	if data != "" {
		t.Errorf("Expected empty save, got %q", data)
	}
}

func TestWriteThenRead(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	testCases := []struct {
		name string
		data string
	}{
		{"first save", "v1-data"},
		{"overwrite", "v2-data-longer"},
		{"unicode", "セーブ"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := s.Write(7, tc.data); err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			got, err := s.Read(7)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if got != tc.data {
				t.Errorf("Expected %q, got %q", tc.data, got)
			}
		})
	}

	if _, err := os.Stat(filepath.Join(dir, "7.dat")); err != nil {
		t.Errorf("Expected 7.dat to exist: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("Expected only the save file to remain, got %d entries", len(entries))
	}
}

func TestStage(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := s.Write(3, "old"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	testCases := []struct {
		name     string
		commit   bool
		expected string
	}{
		{"discard keeps old save", false, "old"},
		{"commit replaces save", true, "new"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := s.Stage(3, "new")
			if err != nil {
				t.Fatalf("Stage failed: %v", err)
			}
			if got, _ := s.Read(3); got != "old" {
				t.Errorf("Expected staged save to stay hidden, got %q", got)
			}
			if tc.commit {
				if err := p.Commit(); err != nil {
					t.Fatalf("Commit failed: %v", err)
				}
			}
			p.Discard()

			got, err := s.Read(3)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if got != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, got)
			}
			entries, _ := os.ReadDir(dir)
			if len(entries) != 1 {
				t.Errorf("Expected no temp files to remain, got %d entries", len(entries))
			}
		})
	}
}
