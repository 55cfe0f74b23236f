// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package pages

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return r
}

func TestInform(t *testing.T) {
	r := newRenderer(t)

	testCases := []struct {
		name     string
		text     string
		image    Image
		contains []string
		excludes []string
	}{
		{
			name:     "line breaks kept",
			text:     "FAILED:<br>Missing username or password.",
			image:    ImageTaitoID,
			contains: []string{"FAILED:<br>Missing username or password.", "/files/web/ttl_taitoid.png"},
		},
		{
			name:     "markup escaped",
			text:     "<script>x</script>",
			image:    ImageShop,
			contains: []string{"&lt;script&gt;", "/files/web/ttl_shop.png"},
			excludes: []string{"<script>x"},
		},
		{
			name:     "out of range image",
			text:     "Access denied",
			image:    Image(99),
			contains: []string{"/files/web/ttl_taitoid.png"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.Inform(w, tc.text, tc.image)

			if w.Code != 200 {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}
			if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
				t.Errorf("Expected text/html, got %s", ct)
			}
			body := w.Body.String()
			for _, s := range tc.contains {
				if !strings.Contains(body, s) {
					t.Errorf("Expected body to contain %q", s)
				}
			}
			for _, s := range tc.excludes {
				if strings.Contains(body, s) {
					t.Errorf("Expected body not to contain %q", s)
				}
			}
		})
	}
}

func TestProfile_BindSection(t *testing.T) {
	r := newRenderer(t)

	testCases := []struct {
		name     string
		profile  Profile
		contains []string
		excludes []string
	}{
		{
			name:     "no bind mode",
			profile:  Profile{Query: "abc", Username: "player1", CoinMP: 1},
			contains: []string{"No bind required in current mode.", "Logged in as player1"},
			excludes: []string{"/verify/"},
		},
		{
			name:     "email unverified",
			profile:  Profile{Query: "abc", Username: "player1", Mode: 1},
			contains: []string{"/send_email/?abc", "/verify/?abc"},
		},
		{
			name:     "email verified",
			profile:  Profile{Query: "abc", Username: "player1", Mode: 1, Bind: BindView{Verified: true, Account: "a@b.c"}},
			contains: []string{"Email verified: a@b.c"},
			excludes: []string{"/send_email/"},
		},
		{
			name:     "discord unverified",
			profile:  Profile{Query: "abc", Username: "player1", Mode: 2, Bind: BindView{Code: "12345"}},
			contains: []string{DiscordInvite, `value="12345"`, "/verify/?abc"},
		},
		{
			name:     "selected multiplier",
			profile:  Profile{Query: "abc", Username: "player1", CoinMP: 3},
			contains: []string{`<option value="3" selected>3</option>`},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.Profile(w, tc.profile)

			body := w.Body.String()
			for _, s := range tc.contains {
				if !strings.Contains(body, s) {
					t.Errorf("Expected body to contain %q", s)
				}
			}
			for _, s := range tc.excludes {
				if strings.Contains(body, s) {
					t.Errorf("Expected body not to contain %q", s)
				}
			}
		})
	}
}

func TestRegister_EmbedsQuery(t *testing.T) {
	r := newRenderer(t)
	w := httptest.NewRecorder()
	r.Register(w, "0a1b2c")

	body := w.Body.String()
	if !strings.Contains(body, "/register/?0a1b2c") || !strings.Contains(body, "/login/?0a1b2c") {
		t.Errorf("Expected both forms to carry the query, got %s", body)
	}
}

func TestMission(t *testing.T) {
	r := newRenderer(t)
	w := httptest.NewRecorder()
	r.Mission(w, []MissionRow{{Level: 5, Song: "Sunset Drive"}})

	body := w.Body.String()
	if !strings.Contains(body, "Level 5") || !strings.Contains(body, "Sunset Drive") {
		t.Errorf("Expected mission row, got %s", body)
	}
}

func TestUserCenter_AdminButton(t *testing.T) {
	r := newRenderer(t)

	w := httptest.NewRecorder()
	r.UserCenter(w, true)
	if !strings.Contains(w.Body.String(), "Admin Panel") {
		t.Error("Expected admin button for admins")
	}

	w = httptest.NewRecorder()
	r.UserCenter(w, false)
	if strings.Contains(w.Body.String(), "Admin Panel") {
		t.Error("Expected no admin button for users")
	}
}
