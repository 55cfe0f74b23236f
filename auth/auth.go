// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

const base62Chars = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// SaveIDLength is the length of the public save identifier used for migration.
const SaveIDLength = 24

// VerificationPeriod is how long an emailed bind code stays valid.
const VerificationPeriod = 10 * time.Minute

var (
	alphanumeric = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	strictEmail  = regexp.MustCompile(`^[A-Za-z0-9]+(?:[._-][A-Za-z0-9]+)*@[A-Za-z0-9]+(?:-[A-Za-z0-9]+)*(?:\.[A-Za-z0-9]+(?:-[A-Za-z0-9]+)*)*\.[A-Za-z]{2,}$`)
)

// GenerateID creates a random hex ID of the specified byte length
func GenerateID(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateWebToken creates a web console bearer token
func GenerateWebToken() (string, error) {
	return GenerateID(64)
}

// GenerateBindToken creates the rotating download token for a bound device
func GenerateBindToken() (string, error) {
	b := make([]byte, 64)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate bind token: %w", err)
	}
	// URL-safe base64 without padding, it ends up in a path segment
	return strings.TrimRight(base64.URLEncoding.EncodeToString(b), "="), nil
}

// GenerateSaveID creates a random base62 save identifier
func GenerateSaveID() (string, error) {
	max := big.NewInt(int64(len(base62Chars)))
	out := make([]byte, SaveIDLength)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate save id: %w", err)
		}
		out[i] = base62Chars[n.Int64()]
	}
	return string(out), nil
}

// ValidSaveID reports whether s has the shape produced by GenerateSaveID
func ValidSaveID(s string) bool {
	return len(s) == SaveIDLength && alphanumeric.MatchString(s)
}

// IsAlphanumeric reports whether s is non-empty ASCII letters and digits
func IsAlphanumeric(s string) bool {
	return alphanumeric.MatchString(s)
}

// ValidEmail applies the strict address shape accepted for email binds
func ValidEmail(s string) bool {
	return strictEmail.MatchString(s)
}

// HashPassword hashes a password with bcrypt
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPassword compares a password with its bcrypt hash
func CheckPassword(hashed, password string) bool {
	if hashed == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}

// Checksum returns the CRC-32 (IEEE) of data as an unsigned decimal string,
// the format the client compares save files against
func Checksum(data []byte) string {
	return strconv.FormatUint(uint64(crc32.ChecksumIEEE(data)), 10)
}

// DiscordBindCode derives the code a player hands to the Discord bot.
// It changes whenever the username or password changes.
func DiscordBindCode(username string, accountID int64, passwordHash, salt string) string {
	combined := username + strconv.FormatInt(accountID, 10) + passwordHash + salt
	return Checksum([]byte(combined))
}

// CodesEqual compares two codes in constant time
func CodesEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}

var verifyOpts = totp.ValidateOpts{
	Period:    uint(VerificationPeriod / time.Second),
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// NewVerificationCode creates a fresh TOTP secret for a bind and the
// six-digit code for now. The secret is stored; the code is sent.
func NewVerificationCode(account string, now time.Time) (code, secret string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "taiyo",
		AccountName: account,
		Period:      verifyOpts.Period,
		Digits:      verifyOpts.Digits,
		Algorithm:   verifyOpts.Algorithm,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to generate bind secret: %w", err)
	}

	code, err = totp.GenerateCodeCustom(key.Secret(), now, verifyOpts)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate bind code: %w", err)
	}
	return code, key.Secret(), nil
}

// CheckVerificationCode validates code against secret at now. Callers
// additionally bound the window by the bind's issue date.
func CheckVerificationCode(code, secret string, now time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, now, verifyOpts)
	return err == nil && ok
}
