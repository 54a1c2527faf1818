package idempotency

import (
	cryptorand "crypto/rand"
	"math/rand"
	"regexp"
	"strings"
)

const (
	// Alphabet is the server-accepted character set for idempotency keys.
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789._:@-/"
	// MaxKeyLength is the ceiling the queue imposes on key length.
	MaxKeyLength = 200
	// DefaultKeyLength balances collision resistance against header size.
	DefaultKeyLength = 44
)

// fallbackKey is returned when every generated character was stripped; the
// contract guarantees a non-empty key.
const fallbackKey = "k"

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9._:@/-]+$`)

// Generator produces opaque submission-deduplication tokens. It prefers the
// operating system's cryptographic entropy and degrades to math/rand when
// that source is unavailable; the fallback weakens dedupe guarantees (two
// clients could collide) but key generation never fails.
type Generator struct {
	fill func([]byte) error
}

// NewGenerator probes the cryptographic source once and selects the
// strongest entropy provider available.
func NewGenerator() *Generator {
	probe := make([]byte, 1)
	if _, err := cryptorand.Read(probe); err != nil {
		return &Generator{fill: weakFill}
	}
	return &Generator{fill: strongFill}
}

func strongFill(p []byte) error {
	_, err := cryptorand.Read(p)
	return err
}

func weakFill(p []byte) error {
	for i := range p {
		p[i] = byte(rand.Intn(256))
	}
	return nil
}

// Key returns a key of at most length characters drawn from Alphabet. Each
// random byte is mapped by modulo indexing, accepting the mild bias. The
// result is never empty and never exceeds MaxKeyLength.
func (g *Generator) Key(length int) string {
	if length <= 0 {
		return fallbackKey
	}
	if length > MaxKeyLength {
		length = MaxKeyLength
	}

	buf := make([]byte, length)
	if err := g.fill(buf); err != nil {
		// Entropy failure after a successful probe; the weak source never errors.
		_ = weakFill(buf)
	}

	out := make([]byte, length)
	for i, b := range buf {
		out[i] = Alphabet[int(b)%len(Alphabet)]
	}

	key := string(out)
	if !keyPattern.MatchString(key) {
		key = stripDisallowed(key)
	}
	if key == "" {
		return fallbackKey
	}
	return key
}

// stripDisallowed drops any rune outside Alphabet. Modulo mapping should make
// this unreachable; it guards the charset contract regardless.
func stripDisallowed(key string) string {
	var sb strings.Builder
	for _, r := range key {
		if r < 128 && strings.ContainsRune(Alphabet, r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

var defaultGenerator = NewGenerator()

// NewKey returns a key of DefaultKeyLength from the package generator.
func NewKey() string {
	return defaultGenerator.Key(DefaultKeyLength)
}
