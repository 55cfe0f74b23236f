// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package identity

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/danielhkuo/taiyo/fields"
	"github.com/danielhkuo/taiyo/models"
)

type fakeLookup struct {
	devices  map[string]*models.Device
	accounts map[int64]*models.Account
	err      error
}

func (f *fakeLookup) Device(ctx context.Context, deviceID string) (*models.Device, error) {
	return f.devices[deviceID], f.err
}

func (f *fakeLookup) Account(ctx context.Context, id int64) (*models.Account, error) {
	return f.accounts[id], f.err
}

func (f *fakeLookup) AccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	for _, a := range f.accounts {
		if a.Username == username {
			return a, nil
		}
	}
	return nil, f.err
}

func (f *fakeLookup) AccountBySaveID(ctx context.Context, saveID string) (*models.Account, error) {
	for _, a := range f.accounts {
		if a.SaveID != nil && *a.SaveID == saveID {
			return a, nil
		}
	}
	return nil, f.err
}

func (f *fakeLookup) DevicesForAccount(ctx context.Context, accountID int64) ([]models.Device, error) {
	var out []models.Device
	for _, d := range f.devices {
		if d.UserID != nil && *d.UserID == accountID {
			out = append(out, *d)
		}
	}
	return out, f.err
}

type fixedRand int

func (r fixedRand) IntN(n int) int { return int(r) }

func ptr[T any](v T) *T { return &v }

func newLookup() *fakeLookup {
	saveID := "abcdefghijklmnopqrstuvwx"
	return &fakeLookup{
		devices: map[string]*models.Device{
			"dev-a":  {DeviceID: "dev-a", UserID: ptr(int64(1)), Stages: []int{3, 1, 2}, Avatars: []int{1}},
			"dev-b":  {DeviceID: "dev-b", UserID: ptr(int64(1)), Stages: []int{2, 5}, Avatars: []int{1, 16}},
			"dev-c":  {DeviceID: "dev-c", Stages: []int{9, 7}, Avatars: []int{2}},
			"orphan": {DeviceID: "orphan", UserID: ptr(int64(99))},
		},
		accounts: map[int64]*models.Account{
			1: {ID: 1, Username: "alice", SaveID: &saveID},
		},
	}
}

func TestResolve(t *testing.T) {
	r := NewResolver(newLookup(), fixedRand(0))
	ctx := context.Background()

	testCases := []struct {
		name        string
		fields      fields.Fields
		wantErr     error
		wantDevice  bool
		wantAccount bool
	}{
		{"no vid", fields.Fields{"other": {"x"}}, ErrNoDevice, false, false},
		{"unknown device", fields.Fields{"vid": {"nobody"}}, nil, false, false},
		{"anonymous device", fields.Fields{"vid": {"dev-c"}}, nil, true, false},
		{"linked device", fields.Fields{"vid": {"dev-a"}}, nil, true, true},
		{"dangling link", fields.Fields{"vid": {"orphan"}}, nil, true, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := r.Resolve(ctx, tc.fields)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Expected error %v, got %v", tc.wantErr, err)
			}
			if err != nil {
				return
			}
			if (id.Device != nil) != tc.wantDevice {
				t.Errorf("Expected device present=%v, got %v", tc.wantDevice, id.Device != nil)
			}
			if (id.Account != nil) != tc.wantAccount {
				t.Errorf("Expected account present=%v, got %v", tc.wantAccount, id.Account != nil)
			}
			if id.DeviceID != tc.fields.Get("vid") {
				t.Errorf("Expected device id '%s', got '%s'", tc.fields.Get("vid"), id.DeviceID)
			}
		})
	}
}

func TestResolve_LookupError(t *testing.T) {
	lookup := newLookup()
	lookup.err = errors.New("db down")
	r := NewResolver(lookup, nil)

	if _, err := r.Resolve(context.Background(), fields.Fields{"vid": {"dev-a"}}); err == nil {
		t.Error("Expected lookup error to propagate")
	}
}

func TestEntitlements_Union(t *testing.T) {
	r := NewResolver(newLookup(), fixedRand(0))

	stages, avatars, err := r.Entitlements(context.Background(), 1, true)
	if err != nil {
		t.Fatalf("Entitlements() error = %v", err)
	}
	if !slices.Equal(stages, []int{1, 2, 3, 5}) {
		t.Errorf("Expected stages [1 2 3 5], got %v", stages)
	}
	if !slices.Equal(avatars, []int{1, 16}) {
		t.Errorf("Expected avatars [1 16], got %v", avatars)
	}
}

func TestEntitlements_Cap(t *testing.T) {
	lookup := newLookup()
	many := make([]int, 0, 600)
	for i := 1; i <= 600; i++ {
		many = append(many, i)
	}
	lookup.devices["dev-a"].Stages = many

	testCases := []struct {
		name      string
		rng       Rand
		capped    bool
		wantLen   int
		wantFirst int
	}{
		{"head kept", fixedRand(0), true, StageCap, 1},
		{"tail kept", fixedRand(1), true, StageCap, 101},
		{"uncapped", fixedRand(0), false, 600, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewResolver(lookup, tc.rng)
			stages, _, err := r.Entitlements(context.Background(), 1, tc.capped)
			if err != nil {
				t.Fatal(err)
			}
			if len(stages) != tc.wantLen {
				t.Errorf("Expected %d stages, got %d", tc.wantLen, len(stages))
			}
			if stages[0] != tc.wantFirst {
				t.Errorf("Expected first stage %d, got %d", tc.wantFirst, stages[0])
			}
		})
	}
}

func TestOwned(t *testing.T) {
	lookup := newLookup()
	r := NewResolver(lookup, fixedRand(0))
	ctx := context.Background()

	anon, _ := r.Resolve(ctx, fields.Fields{"vid": {"dev-c"}})
	stages, avatars, err := r.Owned(ctx, anon, false)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(stages, []int{7, 9}) || !slices.Equal(avatars, []int{2}) {
		t.Errorf("Expected device-only entitlements, got %v %v", stages, avatars)
	}
	if !slices.Equal(lookup.devices["dev-c"].Stages, []int{9, 7}) {
		t.Error("Owned() must not reorder the device's own slice")
	}

	linked, _ := r.Resolve(ctx, fields.Fields{"vid": {"dev-b"}})
	stages, _, _ = r.Owned(ctx, linked, false)
	if !slices.Equal(stages, []int{1, 2, 3, 5}) {
		t.Errorf("Expected merged stages, got %v", stages)
	}

	missing, _ := r.Resolve(ctx, fields.Fields{"vid": {"nobody"}})
	stages, avatars, _ = r.Owned(ctx, missing, false)
	if stages != nil || avatars != nil {
		t.Errorf("Expected nothing without a device, got %v %v", stages, avatars)
	}
}

func TestSupportingResolvers(t *testing.T) {
	r := NewResolver(newLookup(), nil)
	ctx := context.Background()

	if a, _ := r.ByUsername(ctx, "alice"); a == nil || a.ID != 1 {
		t.Errorf("ByUsername() = %+v", a)
	}
	if a, _ := r.BySaveID(ctx, "abcdefghijklmnopqrstuvwx"); a == nil || a.ID != 1 {
		t.Errorf("BySaveID() = %+v", a)
	}
	if a, _ := r.ByAccountID(ctx, 42); a != nil {
		t.Errorf("Expected nil for unknown account, got %+v", a)
	}
}

func TestContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("Expected no identity on empty context")
	}

	id := &Identity{DeviceID: "dev-a"}
	got, ok := FromContext(NewContext(context.Background(), id))
	if !ok || got != id {
		t.Error("Expected identity round trip through context")
	}
}
