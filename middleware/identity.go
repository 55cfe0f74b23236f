// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/taiyo/fields"
	"github.com/danielhkuo/taiyo/identity"
	"github.com/danielhkuo/taiyo/models"
)

// Gate selects which access check a game route applies.
type Gate int

const (
	// GateNone resolves the caller without checking access.
	GateNone Gate = iota
	// GateInit applies the whitelist and blacklist only.
	GateInit
	// GateFull also requires a verified bind when binds are enforced.
	GateFull
)

// Rejection tells a route's reject function why a request was refused.
type Rejection int

const (
	RejectInvalid Rejection = iota + 1
	RejectDenied
	RejectError
)

// RejectFunc writes a refusal in the route's own format.
type RejectFunc func(w http.ResponseWriter, r *http.Request, reason Rejection)

type Resolver interface {
	Resolve(ctx context.Context, f fields.Fields) (*identity.Identity, error)
}

type Gatekeeper interface {
	ShouldServe(ctx context.Context, deviceID string, account *models.Account) bool
	ShouldServeInit(ctx context.Context, deviceID string, account *models.Account) bool
}

// IdentityStage decrypts the game payload, resolves its caller and
// applies the route's gate before the handler runs.
type IdentityStage struct {
	resolver Resolver
	gate     Gatekeeper
}

func NewIdentityStage(resolver Resolver, gate Gatekeeper) *IdentityStage {
	return &IdentityStage{resolver: resolver, gate: gate}
}

// Wrap returns next behind the identity stage. next reads the caller
// with identity.FromContext.
func (s *IdentityStage) Wrap(gate Gate, reject RejectFunc, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		f, raw := fields.Parse(r.URL.RawQuery)
		if f.Empty() {
			reject(w, r, RejectInvalid)
			return
		}

		id, err := s.resolver.Resolve(ctx, f)
		if errors.Is(err, identity.ErrNoDevice) {
			reject(w, r, RejectInvalid)
			return
		}
		if err != nil {
			slog.ErrorContext(ctx, "failed to resolve caller", "error", err)
			reject(w, r, RejectError)
			return
		}
		id.Query = raw

		switch gate {
		case GateInit:
			if !s.gate.ShouldServeInit(ctx, id.DeviceID, id.Account) {
				reject(w, r, RejectDenied)
				return
			}
		case GateFull:
			if !s.gate.ShouldServe(ctx, id.DeviceID, id.Account) {
				reject(w, r, RejectDenied)
				return
			}
		}

		next(w, r.WithContext(identity.NewContext(ctx, id)))
	}
}
