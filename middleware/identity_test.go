// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielhkuo/taiyo/crypt"
	"github.com/danielhkuo/taiyo/fields"
	"github.com/danielhkuo/taiyo/identity"
	"github.com/danielhkuo/taiyo/models"
)

type fakeResolver struct {
	err error
}

func (f fakeResolver) Resolve(ctx context.Context, fl fields.Fields) (*identity.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	if fl.Get("vid") == "" {
		return nil, identity.ErrNoDevice
	}
	return &identity.Identity{DeviceID: fl.Get("vid"), Fields: fl}, nil
}

type fakeGate struct {
	full, init bool
}

func (g fakeGate) ShouldServe(ctx context.Context, deviceID string, account *models.Account) bool {
	return g.full
}

func (g fakeGate) ShouldServeInit(ctx context.Context, deviceID string, account *models.Account) bool {
	return g.init
}

func TestIdentityStage(t *testing.T) {
	valid := "/start.php?" + crypt.Default.Seal([]byte("vid=dev-1&lang=en"))
	noVid := "/start.php?" + crypt.Default.Seal([]byte("lang=en"))

	testCases := []struct {
		name     string
		path     string
		resolver fakeResolver
		gate     fakeGate
		level    Gate
		expected Rejection
	}{
		{"served full", valid, fakeResolver{}, fakeGate{full: true}, GateFull, 0},
		{"served init while bind missing", valid, fakeResolver{}, fakeGate{init: true}, GateInit, 0},
		{"no gate", valid, fakeResolver{}, fakeGate{}, GateNone, 0},
		{"undecryptable", "/start.php?zz", fakeResolver{}, fakeGate{full: true}, GateFull, RejectInvalid},
		{"empty query", "/start.php", fakeResolver{}, fakeGate{full: true}, GateFull, RejectInvalid},
		{"missing vid", noVid, fakeResolver{}, fakeGate{full: true}, GateFull, RejectInvalid},
		{"denied", valid, fakeResolver{}, fakeGate{init: true}, GateFull, RejectDenied},
		{"lookup failure", valid, fakeResolver{err: errors.New("db down")}, fakeGate{full: true}, GateFull, RejectError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var rejected Rejection
			var seen *identity.Identity

			stage := NewIdentityStage(tc.resolver, tc.gate)
			handler := stage.Wrap(tc.level,
				func(w http.ResponseWriter, r *http.Request, reason Rejection) { rejected = reason },
				func(w http.ResponseWriter, r *http.Request) { seen, _ = identity.FromContext(r.Context()) },
			)

			handler(httptest.NewRecorder(), httptest.NewRequest("GET", tc.path, nil))

			if rejected != tc.expected {
				t.Fatalf("Expected rejection %d, got %d", tc.expected, rejected)
			}
			if tc.expected != 0 {
				if seen != nil {
					t.Error("Expected handler not to run")
				}
				return
			}
			if seen == nil {
				t.Fatal("Expected identity in context")
			}
			if seen.DeviceID != "dev-1" {
				t.Errorf("Expected device dev-1, got %s", seen.DeviceID)
			}
			if seen.Query == "" {
				t.Error("Expected raw query on identity")
			}
		})
	}
}
