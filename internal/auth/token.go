// Package auth issues and verifies the bearer token protecting the HTTP API.
// A single token hash lives in the data dir; the plaintext is shown once at
// generation time.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// TokenPrefix makes relic tokens recognizable in config files and logs.
	TokenPrefix = "relic_"
	// TokenLength is the number of random bytes behind a token.
	TokenLength = 32

	bcryptCost    = 10
	tokenHashFile = "token.hash"
)

// GenerateToken creates a new random bearer token.
func GenerateToken() (string, error) {
	bytes := make([]byte, TokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return TokenPrefix + hex.EncodeToString(bytes), nil
}

// HashToken creates a bcrypt hash of a token's secret part.
func HashToken(token string) (string, error) {
	secret := strings.TrimPrefix(token, TokenPrefix)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(hash), nil
}

// VerifyToken reports whether a presented token matches a stored hash.
func VerifyToken(token, hash string) bool {
	secret := strings.TrimPrefix(token, TokenPrefix)
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// IsValidTokenFormat checks the shape of a token before paying for bcrypt.
func IsValidTokenFormat(token string) bool {
	if !strings.HasPrefix(token, TokenPrefix) {
		return false
	}
	secret := strings.TrimPrefix(token, TokenPrefix)
	if len(secret) != TokenLength*2 {
		return false
	}
	_, err := hex.DecodeString(secret)
	return err == nil
}

// SaveTokenHash writes the token hash into the data dir, replacing any
// previous token.
func SaveTokenHash(dataDir, hash string) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	return os.WriteFile(filepath.Join(dataDir, tokenHashFile), []byte(hash), 0600)
}

// LoadTokenHash reads the stored token hash. An empty string with a nil
// error means no token has been issued.
func LoadTokenHash(dataDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, tokenHashFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
