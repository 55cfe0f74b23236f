// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/danielhkuo/taiyo/auth"
	"github.com/danielhkuo/taiyo/mailer"
	"github.com/danielhkuo/taiyo/middleware"
	"github.com/danielhkuo/taiyo/testutil"
)

type captureSender struct {
	mu   sync.Mutex
	sent []string
}

func (c *captureSender) Send(ctx context.Context, from string, to []string, msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, to...)
	return nil
}

// postAccount posts form to path as the given device.
func postAccount(d Deps, h http.HandlerFunc, gate middleware.Gate, path, deviceID string, form url.Values) string {
	req := testutil.MakeFormRequest(path+"?"+testutil.GameQuery(deviceID), form)
	w := serveGame(d, gate, RejectAccount(d.Pages), h, req)
	return w.Body.String()
}

func TestRegisterValidation(t *testing.T) {
	_, d := setupDeps(t)
	h := NewAccountHandler(d, nil)

	testCases := []struct {
		name     string
		username string
		password string
		expected string
	}{
		{"missing username", "", "secret123", "Missing username or password."},
		{"missing password", "player01", "", "Missing username or password."},
		{"same as password", "player01", "player01", "Username cannot be the same as password."},
		{"too short", "abc", "secret123", "Username must be between 6 and 20"},
		{"too long", strings.Repeat("a", 21), "secret123", "Username must be between 6 and 20"},
		{"short password", "player01", "abc", "Password must have"},
		{"not alphanumeric", "player_01", "secret123", "alphanumeric characters."},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			body := postAccount(d, h.Register, middleware.GateNone, "/register/", testutil.NewDeviceID(),
				url.Values{"username": {tc.username}, "password": {tc.password}})
			if !strings.Contains(body, tc.expected) {
				t.Errorf("Expected page to contain %q, got %s", tc.expected, body)
			}
		})
	}
}

func TestRegisterAndLogin(t *testing.T) {
	db, d := setupDeps(t)
	h := NewAccountHandler(d, nil)

	username := testutil.NewUsername()
	deviceID := testutil.NewDeviceID()
	form := url.Values{"username": {username}, "password": {"secret123"}}

	body := postAccount(d, h.Register, middleware.GateNone, "/register/", deviceID, form)
	if !strings.Contains(body, "SUCCESS") {
		t.Fatalf("Expected registration to succeed, got %s", body)
	}

	var accountID int64
	err := db.QueryRow(`SELECT user_id FROM devices WHERE device_id = $1`, deviceID).Scan(&accountID)
	if err != nil {
		t.Fatalf("Expected registering device to be linked: %v", err)
	}

	// Same name again from another device
	body = postAccount(d, h.Register, middleware.GateNone, "/register/", testutil.NewDeviceID(), form)
	if !strings.Contains(body, "Another user already has this name.") {
		t.Errorf("Expected duplicate name to be rejected, got %s", body)
	}

	// Log in on a second device
	second := testutil.NewDeviceID()
	body = postAccount(d, h.Login, middleware.GateNone, "/login/", second,
		url.Values{"username": {username}, "password": {"wrong-password"}})
	if !strings.Contains(body, "Username or password incorrect.") {
		t.Errorf("Expected wrong password to be rejected, got %s", body)
	}

	body = postAccount(d, h.Login, middleware.GateNone, "/login/", second, form)
	if !strings.Contains(body, "You are logged in.") {
		t.Fatalf("Expected login to succeed, got %s", body)
	}

	var linked int64
	if err := db.QueryRow(`SELECT user_id FROM devices WHERE device_id = $1`, second).Scan(&linked); err != nil {
		t.Fatalf("Expected second device to be linked: %v", err)
	}
	if linked != accountID {
		t.Errorf("Expected device linked to %d, got %d", accountID, linked)
	}

	// Logout unlinks
	body = postAccount(d, h.Logout, middleware.GateNone, "/logout/", second, nil)
	if !strings.Contains(body, "Logout success.") {
		t.Errorf("Expected logout to succeed, got %s", body)
	}
	var userID *int64
	if err := db.QueryRow(`SELECT user_id FROM devices WHERE device_id = $1`, second).Scan(&userID); err != nil {
		t.Fatalf("Failed to read device: %v", err)
	}
	if userID != nil {
		t.Errorf("Expected device to be unlinked, got account %d", *userID)
	}
}

func TestCoinMP(t *testing.T) {
	db, d := setupDeps(t)
	h := NewAccountHandler(d, nil)
	accountID, _ := testutil.CreateTestAccount(t, db)
	deviceID := testutil.CreateTestDevice(t, db, accountID, 0, nil)

	testCases := []struct {
		value    string
		expected string
	}{
		{"", "Missing multiplier."},
		{"abc", "Multiplier not acceptable."},
		{"6", "Multiplier not acceptable."},
		{"-1", "Multiplier not acceptable."},
		{"3", "Coin multiplier set to 3."},
	}

	for _, tc := range testCases {
		t.Run("coin_mp="+tc.value, func(t *testing.T) {
			body := postAccount(d, h.CoinMP, middleware.GateNone, "/coin_mp/", deviceID, url.Values{"coin_mp": {tc.value}})
			if !strings.Contains(body, tc.expected) {
				t.Errorf("Expected %q, got %s", tc.expected, body)
			}
		})
	}

	var mp int
	if err := db.QueryRow(`SELECT coin_mp FROM accounts WHERE id = $1`, accountID).Scan(&mp); err != nil {
		t.Fatalf("Failed to read account: %v", err)
	}
	if mp != 3 {
		t.Errorf("Expected coin_mp 3, got %d", mp)
	}
}

func TestSaveMigration(t *testing.T) {
	db, d := setupDeps(t)
	h := NewAccountHandler(d, nil)

	sourceID, _ := testutil.CreateTestAccount(t, db)
	targetID, _ := testutil.CreateTestAccount(t, db)
	targetDevice := testutil.CreateTestDevice(t, db, targetID, 0, nil)

	saveID, err := auth.GenerateSaveID()
	if err != nil {
		t.Fatalf("Failed to generate save id: %v", err)
	}
	if _, err := db.Exec(`UPDATE accounts SET save_id = $2, save_crc = '12345', save_timestamp = NOW() WHERE id = $1`,
		sourceID, saveID); err != nil {
		t.Fatalf("Failed to set save id: %v", err)
	}
	if err := d.Saves.Write(sourceID, "SOURCE-SAVE"); err != nil {
		t.Fatalf("Failed to write source save: %v", err)
	}

	body := postAccount(d, h.SaveMigration, middleware.GateFull, "/save_migration/", targetDevice,
		url.Values{"save_id": {"short"}})
	if !strings.Contains(body, "Save ID not acceptable format.") {
		t.Errorf("Expected format rejection, got %s", body)
	}

	body = postAccount(d, h.SaveMigration, middleware.GateFull, "/save_migration/", targetDevice,
		url.Values{"save_id": {saveID}})
	if !strings.Contains(body, "Save migration was applied.") {
		t.Fatalf("Expected migration to succeed, got %s", body)
	}

	data, err := d.Saves.Read(targetID)
	if err != nil {
		t.Fatalf("Failed to read migrated save: %v", err)
	}
	if data != "SOURCE-SAVE" {
		t.Errorf("Expected migrated save data, got %q", data)
	}

	var crc string
	if err := db.QueryRow(`SELECT save_crc FROM accounts WHERE id = $1`, targetID).Scan(&crc); err != nil {
		t.Fatalf("Failed to read account: %v", err)
	}
	if crc != "12345" {
		t.Errorf("Expected crc copied from source, got %q", crc)
	}
}

func TestSaveMigrationKeepsSaveWhenRecordFails(t *testing.T) {
	db, d := setupDeps(t)
	h := NewAccountHandler(d, nil)

	sourceID, _ := testutil.CreateTestAccount(t, db)
	targetID, _ := testutil.CreateTestAccount(t, db)
	targetDevice := testutil.CreateTestDevice(t, db, targetID, 0, nil)

	saveID, err := auth.GenerateSaveID()
	if err != nil {
		t.Fatalf("Failed to generate save id: %v", err)
	}
	if _, err := db.Exec(`UPDATE accounts SET save_id = $2, save_crc = '12345', save_timestamp = NOW() WHERE id = $1`,
		sourceID, saveID); err != nil {
		t.Fatalf("Failed to set save id: %v", err)
	}
	if err := d.Saves.Write(sourceID, "SOURCE-SAVE"); err != nil {
		t.Fatalf("Failed to write source save: %v", err)
	}
	if err := d.Saves.Write(targetID, "TARGET-SAVE"); err != nil {
		t.Fatalf("Failed to write target save: %v", err)
	}

	// Any new checksum written to accounts now violates the constraint.
	if _, err := db.Exec(`ALTER TABLE accounts ADD CONSTRAINT no_new_crc CHECK (save_crc IS NULL) NOT VALID`); err != nil {
		t.Fatalf("Failed to add constraint: %v", err)
	}

	body := postAccount(d, h.SaveMigration, middleware.GateFull, "/save_migration/", targetDevice,
		url.Values{"save_id": {saveID}})
	if strings.Contains(body, "Save migration was applied.") {
		t.Fatalf("Expected migration to fail, got %s", body)
	}

	data, err := d.Saves.Read(targetID)
	if err != nil {
		t.Fatalf("Failed to read target save: %v", err)
	}
	if data != "TARGET-SAVE" {
		t.Errorf("Expected target save to stay unchanged, got %q", data)
	}
	entries, err := os.ReadDir(d.Config.SaveDir)
	if err != nil {
		t.Fatalf("Failed to list save dir: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("Expected only the two save files, got %d entries", len(entries))
	}
}

func TestEmailBind(t *testing.T) {
	db, d := setupDeps(t)
	sender := &captureSender{}
	h := NewAccountHandler(d, mailer.NewWithSender("noreply@example.com", sender))

	accountID, _ := testutil.CreateTestAccount(t, db)
	deviceID := testutil.CreateTestDevice(t, db, accountID, 0, nil)
	email := gofakeit.Email()

	body := postAccount(d, h.SendEmail, middleware.GateNone, "/send_email/", deviceID, url.Values{"email": {"not-an-email"}})
	if !strings.Contains(body, "Invalid Email.") {
		t.Errorf("Expected invalid email rejection, got %s", body)
	}

	body = postAccount(d, h.SendEmail, middleware.GateNone, "/send_email/", deviceID, url.Values{"email": {email}})
	if !strings.Contains(body, "Email sent.") {
		t.Fatalf("Expected email to be sent, got %s", body)
	}
	if len(sender.sent) != 1 || sender.sent[0] != email {
		t.Errorf("Expected one mail to %s, got %v", email, sender.sent)
	}

	// Resend inside the throttle window
	body = postAccount(d, h.SendEmail, middleware.GateNone, "/send_email/", deviceID, url.Values{"email": {email}})
	if !strings.Contains(body, "Too many requests.") {
		t.Errorf("Expected resend to be throttled, got %s", body)
	}

	body = postAccount(d, h.Verify, middleware.GateNone, "/verify/", deviceID, url.Values{"code": {"000000x"}})
	if !strings.Contains(body, "Invalid or expired verification code.") {
		t.Errorf("Expected bad code rejection, got %s", body)
	}

	var code string
	if err := db.QueryRow(`SELECT bind_code FROM binds WHERE user_id = $1`, accountID).Scan(&code); err != nil {
		t.Fatalf("Failed to read bind: %v", err)
	}
	body = postAccount(d, h.Verify, middleware.GateNone, "/verify/", deviceID, url.Values{"code": {code}})
	if !strings.Contains(body, "Verified and account successfully bound.") {
		t.Fatalf("Expected verification to succeed, got %s", body)
	}

	var verified int
	if err := db.QueryRow(`SELECT is_verified FROM binds WHERE user_id = $1`, accountID).Scan(&verified); err != nil {
		t.Fatalf("Failed to read bind: %v", err)
	}
	if verified != 1 {
		t.Errorf("Expected bind to be verified, got %d", verified)
	}
}

func TestEmailBindWithoutMailer(t *testing.T) {
	db, d := setupDeps(t)
	h := NewAccountHandler(d, nil)
	accountID, _ := testutil.CreateTestAccount(t, db)
	deviceID := testutil.CreateTestDevice(t, db, accountID, 0, nil)

	body := postAccount(d, h.SendEmail, middleware.GateNone, "/send_email/", deviceID, url.Values{"email": {gofakeit.Email()}})
	if !strings.Contains(body, "Failed to send email.") {
		t.Errorf("Expected send failure without SMTP, got %s", body)
	}
}
