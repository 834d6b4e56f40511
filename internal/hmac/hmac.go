package hmac

import (
	cryptoHMAC "crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const randomKeySize = 32

// HMAC signs and verifies messages, signatures are encoded as urlsafe base64
type HMAC struct {
	Key []byte
}

// NewRandom returns an HMAC with a random key.
// Signatures it creates are only valid for the lifetime of the process.
func NewRandom() (*HMAC, error) {
	key := make([]byte, randomKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("error generating hmac key: %w", err)
	}

	return &HMAC{Key: key}, nil
}

func (h *HMAC) sum(message string) []byte {
	mac := cryptoHMAC.New(sha256.New, h.Key)
	mac.Write([]byte(message))
	return mac.Sum(nil)
}

// Create returns the signature of a message
func (h *HMAC) Create(message string) (string, error) {
	if len(h.Key) == 0 {
		return "", fmt.Errorf("hmac key is empty")
	}

	return base64.RawURLEncoding.EncodeToString(h.sum(message)), nil
}

// Validate reports whether signature is the signature of message.
// Malformed signatures do not match.
func (h *HMAC) Validate(message, signature string) (bool, error) {
	if len(h.Key) == 0 {
		return false, fmt.Errorf("hmac key is empty")
	}

	mac, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return false, nil
	}

	return cryptoHMAC.Equal(mac, h.sum(message)), nil
}
