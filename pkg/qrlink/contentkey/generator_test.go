package contentkey

import (
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegacyGenerator_Format(t *testing.T) {
	g := &LegacyGenerator{Now: func() time.Time { return time.UnixMilli(1700000000000) }}
	key := g.NewKey()

	assert.Regexp(t, regexp.MustCompile(`^file_1700000000000_[0-9a-z]{9}$`), key)
	assert.True(t, Valid(key))
}

func TestLegacyGenerator_Unique(t *testing.T) {
	g := NewLegacyGenerator()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		key := g.NewKey()
		require.False(t, seen[key], "duplicate key %s", key)
		seen[key] = true
	}
}

func TestRandomSuffix_Uniform(t *testing.T) {
	const perSymbol = 10000
	suffix := randomSuffix(perSymbol * len(base36))
	require.Len(t, suffix, perSymbol*len(base36))

	counts := make(map[rune]int)
	for _, c := range suffix {
		counts[c]++
	}
	require.Len(t, counts, len(base36))
	// About five standard deviations; a modulo-biased mapping gives the first
	// four symbols 12.5% more than the rest.
	for _, c := range base36 {
		assert.InDelta(t, perSymbol, counts[c], 500, "symbol %q", c)
	}
}

func TestUUIDGenerator(t *testing.T) {
	key := NewUUIDGenerator().NewKey()
	id, err := uuid.Parse(key)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.True(t, Valid(key))
}

func TestNew(t *testing.T) {
	g, err := New("")
	require.NoError(t, err)
	assert.IsType(t, &LegacyGenerator{}, g)

	g, err = New("uuid")
	require.NoError(t, err)
	assert.IsType(t, &UUIDGenerator{}, g)

	_, err = New("sequential")
	assert.Error(t, err)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("file_1700000000000_abc123xyz"))
	assert.True(t, Valid("nonexistent"))
	assert.False(t, Valid(""))
	assert.False(t, Valid("../etc/passwd"))
	assert.False(t, Valid("a.b"))
	assert.False(t, Valid("a b"))
}
