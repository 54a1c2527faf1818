package idempotency

import (
	"errors"
	"net/http"
)

// Header carries the client-chosen deduplication token.
const Header = "Idempotency-Key"

var (
	// ErrMissingKey indicates that no Idempotency-Key header was provided.
	ErrMissingKey = errors.New("missing idempotency key")
	// ErrKeyTooLong indicates the key exceeds MaxKeyLength.
	ErrKeyTooLong = errors.New("idempotency key too long")
	// ErrKeyCharset indicates the key contains characters outside Alphabet.
	ErrKeyCharset = errors.New("idempotency key has invalid characters")
)

// Validate checks a key against the server-imposed length and charset rules.
func Validate(key string) error {
	if key == "" {
		return ErrMissingKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if !keyPattern.MatchString(key) {
		return ErrKeyCharset
	}
	return nil
}

// FromRequest extracts and validates the Idempotency-Key header. Absence is
// reported as ErrMissingKey so callers can treat the key as optional.
func FromRequest(r *http.Request) (string, error) {
	key := r.Header.Get(Header)
	if key == "" {
		return "", ErrMissingKey
	}
	if err := Validate(key); err != nil {
		return "", err
	}
	return key, nil
}
