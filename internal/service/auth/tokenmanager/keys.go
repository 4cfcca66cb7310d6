package tokenmanager

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	accessKeyInfo  = "taskmanager/jwt/access"
	refreshKeyInfo = "taskmanager/jwt/refresh"
	derivedKeySize = 32
)

// Derive signing key for one token class from the master secret
func deriveKey(master string, info string) ([]byte, error) {
	key := make([]byte, derivedKeySize)
	r := hkdf.New(sha256.New, []byte(master), nil, []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("error while deriving key. Err: %w", err)
	}
	return key, nil
}

// Return access and refresh signing keys
// If refresh secret is set both secrets are used as is, otherwise both keys derived from the master one
func signingKeys(secret string, refreshSecret string) (access []byte, refresh []byte, err error) {
	if refreshSecret != "" {
		return []byte(secret), []byte(refreshSecret), nil
	}

	access, err = deriveKey(secret, accessKeyInfo)
	if err != nil {
		return nil, nil, err
	}
	refresh, err = deriveKey(secret, refreshKeyInfo)
	if err != nil {
		return nil, nil, err
	}
	return access, refresh, nil
}
