// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// Entry is one published release in the changelog feed.
type Entry struct {
	IsOpen    bool   `json:"isOpen"`
	Version   any    `json:"version"`
	ChangeLog struct {
		En []string `json:"en"`
	} `json:"changeLog"`
}

// Tracker holds the FMAX release version and its changelog. The version
// comes from a local file, the changelog from a remote JSON feed.
type Tracker struct {
	versionFile  string
	changelogURL string
	client       *http.Client

	mu      sync.RWMutex
	version string
	entries []Entry
	// status is the fetch failure code, 0 after a good fetch
	status int
}

func NewTracker(versionFile, changelogURL string) *Tracker {
	return &Tracker{
		versionFile:  versionFile,
		changelogURL: changelogURL,
		client:       &http.Client{Timeout: 10 * time.Second},
		status:       -1,
	}
}

// Refresh rereads the version file and refetches the changelog. A missing
// file or a failed fetch is recorded, not fatal; the returned error is
// for logging.
func (t *Tracker) Refresh(ctx context.Context) error {
	var errs []error

	version := ""
	if data, err := os.ReadFile(t.versionFile); err == nil {
		version = strings.TrimSpace(string(data))
	} else {
		errs = append(errs, fmt.Errorf("failed to read release version: %w", err))
	}

	entries, status, err := t.fetch(ctx)
	if err != nil {
		errs = append(errs, err)
	}

	t.mu.Lock()
	t.version = version
	t.entries = entries
	t.status = status
	t.mu.Unlock()

	return errors.Join(errs...)
}

func (t *Tracker) fetch(ctx context.Context) ([]Entry, int, error) {
	if t.changelogURL == "" {
		return nil, -1, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.changelogURL, nil)
	if err != nil {
		return nil, 400, fmt.Errorf("failed to build changelog request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, 400, fmt.Errorf("failed to fetch changelog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 207 {
		return nil, resp.StatusCode, fmt.Errorf("changelog fetch returned %d", resp.StatusCode)
	}

	// the feed wraps the entry list as a JSON string in "source"
	var envelope struct {
		Source string `json:"source"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, 500, fmt.Errorf("failed to decode changelog: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(envelope.Source), &entries); err != nil {
		return nil, 500, fmt.Errorf("failed to decode changelog source: %w", err)
	}
	return entries, 0, nil
}

// Version returns the loaded version string, or "" when unknown.
func (t *Tracker) Version() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// Known reports whether a version was loaded.
func (t *Tracker) Known() bool {
	return t.Version() != ""
}

// Present reports whether the version file exists right now.
func (t *Tracker) Present() bool {
	info, err := os.Stat(t.versionFile)
	return err == nil && !info.IsDir()
}

// ChangelogHTML renders the open releases for the shop detail pane.
func (t *Tracker) ChangelogHTML() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.status != 0 {
		if t.status < 0 {
			return "Failed to fetch version info: Error None"
		}
		return fmt.Sprintf("Failed to fetch version info: Error %d", t.status)
	}

	var b strings.Builder
	for _, e := range t.entries {
		if !e.IsOpen {
			continue
		}
		version := e.Version
		if version == nil {
			version = 0
		}
		lines := make([]string, len(e.ChangeLog.En))
		for i, l := range e.ChangeLog.En {
			lines[i] = html.EscapeString(l)
		}
		fmt.Fprintf(&b, "<strong>Version: %v</strong><p><strong>Changelog:</strong><br>%s</p>",
			html.EscapeString(fmt.Sprint(version)), strings.Join(lines, "<br>"))
	}
	return b.String()
}
