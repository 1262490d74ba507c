package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"regexp"
)

// AnonymousTokenBytes is the entropy of a freshly allocated anonymous identity.
const AnonymousTokenBytes = 32

var anonymousValuePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{16,128}$`)

// AnonymousAllocator hands out per-browser pseudo-identities for likes.
// The values are not bound to anything and are trivially shareable.
type AnonymousAllocator struct {
	random io.Reader
}

// NewAnonymousAllocator returns an allocator backed by crypto/rand.
func NewAnonymousAllocator() *AnonymousAllocator {
	return &AnonymousAllocator{random: rand.Reader}
}

// WellFormedAnonymousValue reports whether v can be reused as an anonymous cookie value.
func WellFormedAnonymousValue(v string) bool {
	return anonymousValuePattern.MatchString(v)
}

// Ensure reuses existing when it is well-formed and otherwise allocates a new
// value. issued is true when the caller must persist the value in a cookie.
func (a *AnonymousAllocator) Ensure(existing string) (value string, issued bool, err error) {
	if WellFormedAnonymousValue(existing) {
		return existing, false, nil
	}

	b := make([]byte, AnonymousTokenBytes)
	if _, err := io.ReadFull(a.random, b); err != nil {
		return "", false, fmt.Errorf("generate anonymous id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), true, nil
}
