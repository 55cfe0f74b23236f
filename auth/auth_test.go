// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"strings"
	"testing"
	"time"
)

func TestGenerateID(t *testing.T) {
	tests := []struct {
		name    string
		byteLen int
		wantLen int // hex encoded length = byteLen * 2
	}{
		{"8 bytes", 8, 16},
		{"16 bytes", 16, 32},
		{"64 bytes", 64, 128},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := GenerateID(tt.byteLen)
			if err != nil {
				t.Fatalf("GenerateID() error = %v", err)
			}
			if len(id) != tt.wantLen {
				t.Errorf("GenerateID() length = %d, want %d", len(id), tt.wantLen)
			}
			for _, c := range id {
				if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
					t.Errorf("GenerateID() contains invalid hex char: %c", c)
				}
			}
		})
	}

	id1, _ := GenerateID(16)
	id2, _ := GenerateID(16)
	if id1 == id2 {
		t.Error("GenerateID() produced duplicate IDs (extremely unlikely)")
	}
}

func TestGenerateBindToken(t *testing.T) {
	token, err := GenerateBindToken()
	if err != nil {
		t.Fatalf("GenerateBindToken() error = %v", err)
	}

	// 64 bytes = 86 base64 chars without padding
	if len(token) != 86 {
		t.Errorf("GenerateBindToken() length = %d, want 86", len(token))
	}
	if strings.ContainsAny(token, "+/=") {
		t.Errorf("GenerateBindToken() = %q, not path safe", token)
	}
}

func TestGenerateSaveID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id, err := GenerateSaveID()
		if err != nil {
			t.Fatalf("GenerateSaveID() error = %v", err)
		}
		if !ValidSaveID(id) {
			t.Errorf("GenerateSaveID() = %q, not a valid save id", id)
		}
		if seen[id] {
			t.Errorf("GenerateSaveID() produced duplicate %q", id)
		}
		seen[id] = true
	}
}

func TestValidSaveID(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"abcdefghijklmnopqrstuvwx", true},
		{"ABCDEFGHIJKL012345678901", true},
		{"abc", false},
		{"abcdefghijklmnopqrstuvwxy", false},
		{"abcdefghijklmnopqrstuv-x", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidSaveID(tt.input); got != tt.want {
			t.Errorf("ValidSaveID(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestIsAlphanumeric(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"player01", true},
		{"PLAYER", true},
		{"", false},
		{"player_01", false},
		{"プレイヤー", false},
	}

	for _, tt := range tests {
		if got := IsAlphanumeric(tt.input); got != tt.want {
			t.Errorf("IsAlphanumeric(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestValidEmail(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"player@example.com", true},
		{"first.last@mail.example.co", true},
		{"no-at-sign.example.com", false},
		{"trailing.@example.com", false},
		{"player@example", false},
	}

	for _, tt := range tests {
		if got := ValidEmail(tt.input); got != tt.want {
			t.Errorf("ValidEmail(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("secret123")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if !CheckPassword(hash, "secret123") {
		t.Error("CheckPassword() rejected the correct password")
	}
	if CheckPassword(hash, "secret124") {
		t.Error("CheckPassword() accepted a wrong password")
	}
	if CheckPassword("", "secret123") {
		t.Error("CheckPassword() accepted an empty hash")
	}
}

func TestChecksum(t *testing.T) {
	if got := Checksum([]byte("hello")); got != "907060870" {
		t.Errorf("Checksum(hello) = %s, want 907060870", got)
	}
	if got := Checksum(nil); got != "0" {
		t.Errorf("Checksum(nil) = %s, want 0", got)
	}
}

func TestDiscordBindCode(t *testing.T) {
	code := DiscordBindCode("player01", 7, "$2a$10$hash", "salt")

	if code != DiscordBindCode("player01", 7, "$2a$10$hash", "salt") {
		t.Error("DiscordBindCode() is not deterministic")
	}
	if code == DiscordBindCode("player01", 7, "$2a$10$other", "salt") {
		t.Error("DiscordBindCode() should change with the password hash")
	}
	if code == DiscordBindCode("player01", 7, "$2a$10$hash", "pepper") {
		t.Error("DiscordBindCode() should change with the salt")
	}
}

func TestVerificationCode(t *testing.T) {
	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	code, secret, err := NewVerificationCode("player@example.com", issued)
	if err != nil {
		t.Fatalf("NewVerificationCode() error = %v", err)
	}
	if len(code) != 6 {
		t.Errorf("Expected 6 digit code, got %q", code)
	}

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"same instant", issued, true},
		{"five minutes later", issued.Add(5 * time.Minute), true},
		{"nine minutes later", issued.Add(9 * time.Minute), true},
		{"half an hour later", issued.Add(30 * time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckVerificationCode(code, secret, tt.at); got != tt.want {
				t.Errorf("CheckVerificationCode() = %v, want %v", got, tt.want)
			}
		})
	}

	if CheckVerificationCode("000000", secret, issued) && code != "000000" {
		t.Error("CheckVerificationCode() accepted a wrong code")
	}
}
