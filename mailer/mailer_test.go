// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestLang(t *testing.T) {
	testCases := []struct {
		header   string
		expected string
	}{
		{"", "en"},
		{"en-US,en;q=0.9", "en"},
		{"ja-JP", "jp"},
		{"zh-CN,zh;q=0.8", "zh"},
		{"zh-TW", "tc"},
		{"de-DE", "en"},
		{"not a header;;", "en"},
	}

	for _, tc := range testCases {
		t.Run(tc.header, func(t *testing.T) {
			if got := Lang(tc.header); got != tc.expected {
				t.Errorf("Expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func TestCompose(t *testing.T) {
	msg, err := Compose("bot@example.com", "player@example.com", "en", "123456")
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}

	s := string(msg)
	for _, want := range []string{
		"From: bot@example.com\r\n",
		"To: player@example.com\r\n",
		"Subject: Project Taiyo - Email Verification\r\n",
		"Content-Type: text/html; charset=utf-8",
		"<h2>123456</h2>",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("Expected message to contain %q", want)
		}
	}
}

func TestCompose_EncodesNonASCIISubject(t *testing.T) {
	msg, err := Compose("a@b.c", "d@e.f", "jp", "1")
	if err != nil {
		t.Fatalf("Compose failed: %v", err)
	}
	if !strings.Contains(string(msg), "Subject: =?utf-8?q?") {
		t.Errorf("Expected Q-encoded subject, got %s", msg)
	}
}

type fakeSender struct {
	to  []string
	msg []byte
	err error
}

func (f *fakeSender) Send(ctx context.Context, from string, to []string, msg []byte) error {
	f.to = to
	f.msg = msg
	return f.err
}

func TestSendCode(t *testing.T) {
	s := &fakeSender{}
	m := NewWithSender("bot@example.com", s)

	if err := m.SendCode(context.Background(), "player@example.com", "654321", "en"); err != nil {
		t.Fatalf("SendCode failed: %v", err)
	}
	if len(s.to) != 1 || s.to[0] != "player@example.com" {
		t.Errorf("Expected recipient player@example.com, got %v", s.to)
	}
	if !strings.Contains(string(s.msg), "654321") {
		t.Error("Expected the code in the message body")
	}

	s.err = errors.New("connection refused")
	if err := m.SendCode(context.Background(), "player@example.com", "1", ""); !errors.Is(err, s.err) {
		t.Errorf("Expected wrapped sender error, got %v", err)
	}
}

func TestNew_RequiresHost(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}
