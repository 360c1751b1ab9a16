// Package crypto derives the keys the service needs from a single master key.
// The master key never touches disk; SQLCipher receives an HKDF-SHA256
// derivation bound to a purpose string and a version.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the size of every derived key in bytes (256 bits).
	KeySize = 32

	// MasterKeySize is the decoded size of MASTER_KEY.
	MasterKeySize = 32

	// PurposeDatabase labels the SQLCipher key.
	PurposeDatabase = "database"
)

// ParseMasterKey decodes a 64-character hex master key.
func ParseMasterKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("master key is not valid hex: %w", err)
	}
	if len(key) != MasterKeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", MasterKeySize, len(key))
	}
	return key, nil
}

// DeriveKey derives a purpose-bound key from masterKey using HKDF-SHA256.
// info = purpose + ":v" + version, so rotating the version yields an
// unrelated key.
func DeriveKey(masterKey []byte, purpose string, version int) []byte {
	info := fmt.Sprintf("%s:v%d", purpose, version)

	// Salt is nil; a random master key is sufficient here.
	hkdfReader := hkdf.New(sha256.New, masterKey, nil, []byte(info))

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		// HKDF only fails past 255*HashLen bytes of output.
		panic(fmt.Sprintf("HKDF failed: %v", err))
	}
	return key
}

// DatabaseKey is the SQLCipher key for the given key version.
func DatabaseKey(masterKey []byte, version int) []byte {
	return DeriveKey(masterKey, PurposeDatabase, version)
}

// RandomToken returns n random bytes, base64url-encoded without padding.
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
