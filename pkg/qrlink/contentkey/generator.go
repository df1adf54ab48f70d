package contentkey

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Generator defines the interface for content key generation strategies
type Generator interface {
	// NewKey returns a fresh key for one upload attempt
	NewKey() string
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// LegacyGenerator produces "file_{unixMillis}_{9 base36 chars}", the format
// existing stored objects use.
type LegacyGenerator struct {
	Now func() time.Time
}

func NewLegacyGenerator() *LegacyGenerator {
	return &LegacyGenerator{Now: time.Now}
}

func (g *LegacyGenerator) NewKey() string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	return fmt.Sprintf("file_%d_%s", now().UnixMilli(), randomSuffix(9))
}

// maxUnbiased is the largest multiple of 36 that fits in a byte. Bytes at or
// above it are rejected so every character is equally likely.
const maxUnbiased = 256 - 256%len(base36)

func randomSuffix(n int) string {
	out := make([]byte, 0, n)
	buf := make([]byte, n+n/2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			panic(fmt.Sprintf("contentkey: crypto/rand failed: %v", err))
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			out = append(out, base36[int(b)%len(base36)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out)
}

// UUIDGenerator produces time-ordered UUIDv7 keys.
type UUIDGenerator struct{}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) NewKey() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// New returns the generator registered under name ("legacy" or "uuid").
func New(name string) (Generator, error) {
	switch name {
	case "", "legacy":
		return NewLegacyGenerator(), nil
	case "uuid":
		return NewUUIDGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown content key generator: %s", name)
	}
}

var validKey = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Valid reports whether key is safe to use as a storage key prefix.
func Valid(key string) bool {
	return validKey.MatchString(key)
}
