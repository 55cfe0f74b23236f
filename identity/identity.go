// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package identity

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/danielhkuo/taiyo/fields"
	"github.com/danielhkuo/taiyo/models"
)

// StageCap is the most stages a display response may carry.
const StageCap = 500

// ErrNoDevice is returned when the payload has no vid field.
var ErrNoDevice = errors.New("request has no device id")

// Lookup is the read side of the store the resolver needs.
type Lookup interface {
	Device(ctx context.Context, deviceID string) (*models.Device, error)
	Account(ctx context.Context, id int64) (*models.Account, error)
	AccountByUsername(ctx context.Context, username string) (*models.Account, error)
	AccountBySaveID(ctx context.Context, saveID string) (*models.Account, error)
	DevicesForAccount(ctx context.Context, accountID int64) ([]models.Device, error)
}

// Rand picks which end of an oversized stage list survives the cap.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Identity is the resolved caller of a game request.
type Identity struct {
	DeviceID string
	Device   *models.Device
	Account  *models.Account
	Fields   fields.Fields
	// Query is the raw encrypted query string, echoed back by some pages.
	Query string
}

// AccountID returns the linked account id, if any.
func (id *Identity) AccountID() (int64, bool) {
	if id == nil || id.Account == nil {
		return 0, false
	}
	return id.Account.ID, true
}

// Resolver maps decrypted fields to a device and its linked account.
type Resolver struct {
	lookup Lookup
	rng    Rand
}

// NewResolver creates a resolver. A nil rng uses math/rand/v2.
func NewResolver(lookup Lookup, rng Rand) *Resolver {
	if rng == nil {
		rng = globalRand{}
	}
	return &Resolver{lookup: lookup, rng: rng}
}

// Resolve looks up the device named by vid and the account it is linked
// to. Missing rows leave the corresponding pointer nil.
func (r *Resolver) Resolve(ctx context.Context, f fields.Fields) (*Identity, error) {
	deviceID := f.Get("vid")
	if deviceID == "" {
		return nil, ErrNoDevice
	}

	id := &Identity{DeviceID: deviceID, Fields: f}

	device, err := r.lookup.Device(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load device: %w", err)
	}
	id.Device = device
	if device == nil || device.UserID == nil {
		return id, nil
	}

	account, err := r.lookup.Account(ctx, *device.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	id.Account = account
	return id, nil
}

// Refresh reloads the device and account of an existing identity.
func (r *Resolver) Refresh(ctx context.Context, id *Identity) error {
	fresh, err := r.Resolve(ctx, id.Fields)
	if err != nil {
		return err
	}
	id.Device, id.Account = fresh.Device, fresh.Account
	return nil
}

func (r *Resolver) ByUsername(ctx context.Context, username string) (*models.Account, error) {
	return r.lookup.AccountByUsername(ctx, username)
}

func (r *Resolver) BySaveID(ctx context.Context, saveID string) (*models.Account, error) {
	return r.lookup.AccountBySaveID(ctx, saveID)
}

func (r *Resolver) ByAccountID(ctx context.Context, id int64) (*models.Account, error) {
	return r.lookup.Account(ctx, id)
}

// Entitlements unions stages and avatars over every device linked to the
// account. With capped set, a stage list longer than StageCap is cut to
// either its first or its last StageCap entries.
func (r *Resolver) Entitlements(ctx context.Context, accountID int64, capped bool) (stages, avatars []int, err error) {
	devices, err := r.lookup.DevicesForAccount(ctx, accountID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load linked devices: %w", err)
	}

	for _, d := range devices {
		stages = append(stages, d.Stages...)
		avatars = append(avatars, d.Avatars...)
	}
	stages = SortedSet(stages)
	avatars = SortedSet(avatars)

	if capped && len(stages) > StageCap {
		if r.rng.IntN(2) == 0 {
			stages = stages[:StageCap]
		} else {
			stages = stages[len(stages)-StageCap:]
		}
	}
	return stages, avatars, nil
}

// Owned returns the caller's stages and avatars: the merged account view
// when linked, the device's own lists otherwise.
func (r *Resolver) Owned(ctx context.Context, id *Identity, capped bool) (stages, avatars []int, err error) {
	if accountID, ok := id.AccountID(); ok {
		return r.Entitlements(ctx, accountID, capped)
	}
	if id == nil || id.Device == nil {
		return nil, nil, nil
	}
	return SortedSet(slices.Clone(id.Device.Stages)), SortedSet(slices.Clone(id.Device.Avatars)), nil
}

// SortedSet sorts ids in place and removes duplicates.
func SortedSet(ids []int) []int {
	slices.Sort(ids)
	return slices.Compact(ids)
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying id.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored by NewContext.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*Identity)
	return id, ok && id != nil
}
