package auth

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestAnonymousAllocator_ReusesWellFormedValue(t *testing.T) {
	a := NewAnonymousAllocator()
	existing := "k3J9sQx0_pL-aa7bZr2mQw"

	value, issued, err := a.Ensure(existing)
	require.NoError(t, err)
	assert.False(t, issued)
	assert.Equal(t, existing, value)
}

func TestAnonymousAllocator_IssuesOnMissingOrMalformed(t *testing.T) {
	a := NewAnonymousAllocator()

	for _, existing := range []string{"", "short", "has space in it!!!!!", "semi;colon;injection;value", strings.Repeat("a", 129)} {
		value, issued, err := a.Ensure(existing)
		require.NoError(t, err)
		assert.True(t, issued, existing)
		assert.NotEqual(t, existing, value)
		assert.Len(t, value, 43, "32 bytes base64url without padding")
		assert.True(t, WellFormedAnonymousValue(value))
	}
}

func TestAnonymousAllocator_ValuesAreUnique(t *testing.T) {
	a := NewAnonymousAllocator()
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		value, _, err := a.Ensure("")
		require.NoError(t, err)
		_, dup := seen[value]
		require.False(t, dup)
		seen[value] = struct{}{}
	}
}

func TestAnonymousAllocator_DeterministicReader(t *testing.T) {
	a := &AnonymousAllocator{random: bytes.NewReader(make([]byte, AnonymousTokenBytes))}
	value, issued, err := a.Ensure("")
	require.NoError(t, err)
	assert.True(t, issued)
	assert.Equal(t, strings.Repeat("A", 43), value)
}

func TestAnonymousAllocator_EntropyFailure(t *testing.T) {
	a := &AnonymousAllocator{random: failingReader{}}
	_, _, err := a.Ensure("")
	require.Error(t, err)
}

func TestNewAnonymousPrincipal(t *testing.T) {
	p, err := NewAnonymousPrincipal("abcDEF0123456789")
	require.NoError(t, err)
	assert.Equal(t, KindAnonymous, p.Kind)
	assert.Equal(t, "anon_abcDEF0123456789", p.ID)
	assert.Equal(t, RoleUser, p.Role)
	assert.False(t, p.IsAuthenticated())
	assert.False(t, p.IsAdmin())

	_, err = NewAnonymousPrincipal("")
	require.Error(t, err)
}

func TestNewUserPrincipal(t *testing.T) {
	p, err := NewUserPrincipal("u1", RoleAdmin)
	require.NoError(t, err)
	assert.True(t, p.IsAuthenticated())
	assert.True(t, p.IsAdmin())

	p, err = NewUserPrincipal("u2", "superuser")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, p.Role)
	assert.False(t, p.IsAdmin())

	_, err = NewUserPrincipal("  ", RoleUser)
	require.Error(t, err)

	var nilPrincipal *Principal
	assert.False(t, nilPrincipal.IsAuthenticated())
}
