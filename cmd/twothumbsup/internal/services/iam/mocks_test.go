package iam

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/auth"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/db/models"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/repository"
)

const testSecret = "0123456789abcdef0123456789abcdef-test"

// mockUserRepository for testing
type mockUserRepository struct {
	mu     sync.Mutex
	users  map[string]*models.User
	nextID int
}

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]*models.User)}
}

func (m *mockUserRepository) conflicts(u *models.User) bool {
	for _, other := range m.users {
		if other.ID == u.ID {
			continue
		}
		if other.Username == u.Username {
			return true
		}
		if u.Email != nil && other.Email != nil && *u.Email == *other.Email {
			return true
		}
		if u.ExternalSubject != nil && other.ExternalSubject != nil && *u.ExternalSubject == *other.ExternalSubject {
			return true
		}
	}
	return false
}

func (m *mockUserRepository) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == "" {
		m.nextID++
		user.ID = fmt.Sprintf("user-%d", m.nextID)
	}
	if user.Role == "" {
		user.Role = auth.RoleUser
	}
	if m.conflicts(user) {
		return repository.ErrConflict
	}
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *mockUserRepository) find(match func(*models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ID == id })
}

func (m *mockUserRepository) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Username == username })
}

func (m *mockUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Email != nil && *u.Email == email })
}

func (m *mockUserRepository) GetByExternalSubject(_ context.Context, subject string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ExternalSubject != nil && *u.ExternalSubject == subject })
}

func (m *mockUserRepository) Update(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	if m.conflicts(user) {
		return repository.ErrConflict
	}
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *mockUserRepository) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.LastLoginAt = &at
	return nil
}

// mockRevokedTokenRepository for testing
type mockRevokedTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*models.RevokedToken
}

func newMockRevokedTokenRepository() *mockRevokedTokenRepository {
	return &mockRevokedTokenRepository{tokens: make(map[string]*models.RevokedToken)}
}

func (m *mockRevokedTokenRepository) Create(_ context.Context, token *models.RevokedToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.JTI] = token
	return nil
}

func (m *mockRevokedTokenRepository) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tokens[jti]
	return ok, nil
}

func (m *mockRevokedTokenRepository) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for jti, t := range m.tokens {
		if t.Exp.Before(before) {
			delete(m.tokens, jti)
			n++
		}
	}
	return n, nil
}

// mockVerifier accepts exactly one token.
type mockVerifier struct {
	token   string
	profile *auth.ExternalProfile
}

func (m *mockVerifier) VerifyExternal(_ context.Context, token string) (*auth.ExternalProfile, error) {
	if token != m.token {
		return nil, auth.ErrInvalidToken
	}
	p := *m.profile
	return &p, nil
}

// mockAuthenticator for testing
type mockAuthenticator struct {
	principal *auth.Principal
	err       error
	calls     int
}

func (m *mockAuthenticator) Authenticate(context.Context, AuthRequest) (*auth.Principal, error) {
	m.calls++
	return m.principal, m.err
}

func newTestTokens(t *testing.T, opts ...auth.TokenIssuerOption) *auth.TokenIssuer {
	t.Helper()
	tokens, err := auth.NewTokenIssuer(testSecret, 7*24*time.Hour, "twothumbsup-test", opts...)
	require.NoError(t, err)
	return tokens
}

func cookieRequest(name, value string) AuthRequest {
	return AuthRequest{
		Headers: http.Header{},
		Cookies: []*http.Cookie{{Name: name, Value: value}},
	}
}

func bearerRequest(token string) AuthRequest {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return AuthRequest{Headers: h}
}

func strPtr(s string) *string { return &s }
