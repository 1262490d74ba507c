package iam

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/auth"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/config"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/db/models"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/repository"
)

// ErrIncompleteProfile is returned by SyncExternalUser when the token lacks
// a subject or an email.
var ErrIncompleteProfile = errors.New("external profile requires sub and email")

// Service provides the account operations behind the auth and user routes.
type Service interface {
	// Login checks a username and password and issues a session token.
	// Unknown users and wrong passwords both return auth.ErrInvalidCredentials.
	Login(ctx context.Context, username, password string) (*Session, error)

	// IssueSession mints a session token for an already authenticated user.
	// The SSO callback uses it after a successful code exchange.
	IssueSession(ctx context.Context, user *models.User) (*Session, error)

	// Logout revokes the jti of token. Invalid or expired tokens are ignored.
	Logout(ctx context.Context, token string) error

	// SyncExternalUser upserts the local record for a verified external profile.
	//
	// Lookup order:
	//   1. users.external_subject = profile.sub
	//   2. users.email = profile.email, only when email_verified is true
	//   3. create a new user with role "user"
	//
	// Returns ErrIncompleteProfile or repository.ErrConflict.
	SyncExternalUser(ctx context.Context, profile *auth.ExternalProfile) (*models.User, error)

	// GetUserBySubject returns the record linked to an external subject.
	GetUserBySubject(ctx context.Context, subject string) (*models.User, error)

	// CreateLocalUser creates a password account. Used by the users CLI.
	CreateLocalUser(ctx context.Context, username, email, password, role string) (*models.User, error)

	// EnsureAdmins seeds the configured admin accounts. Existing usernames are
	// left untouched. Per-account failures are logged and skipped.
	EnsureAdmins(ctx context.Context, admins []config.AdminAccount) (created int)

	// PurgeRevokedTokens drops denylist entries whose tokens have expired.
	PurgeRevokedTokens(ctx context.Context) (int64, error)
}

// Session is a freshly issued local session.
type Session struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

// IAMServiceDependencies contains all dependencies for IAM service construction.
type IAMServiceDependencies struct {
	Users   repository.UserRepository
	Revoked repository.RevokedTokenRepository
	Tokens  *auth.TokenIssuer
}

// IAMServiceConfig contains configuration for IAM service construction.
type IAMServiceConfig struct {
	BcryptCost int
	// Now defaults to time.Now.
	Now func() time.Time
}

type iamService struct {
	users      repository.UserRepository
	revoked    repository.RevokedTokenRepository
	tokens     *auth.TokenIssuer
	bcryptCost int
	now        func() time.Time
}

// NewIAMService creates the IAM service.
func NewIAMService(deps IAMServiceDependencies, cfg IAMServiceConfig) (Service, error) {
	if deps.Users == nil || deps.Revoked == nil || deps.Tokens == nil {
		return nil, errors.New("iam service requires users, revoked tokens and a token issuer")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &iamService{
		users:      deps.Users,
		revoked:    deps.Revoked,
		tokens:     deps.Tokens,
		bcryptCost: cfg.BcryptCost,
		now:        now,
	}, nil
}

func (s *iamService) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("load user: %w", err)
		}
		// Spend the same time as a real comparison.
		_ = auth.CheckPassword(nil, password)
		return nil, auth.ErrInvalidCredentials
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return nil, auth.ErrInvalidCredentials
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, s.now()); err != nil {
		log.WithError(err).WithField("user_id", user.ID).Warn("failed to record last login")
	}
	return s.IssueSession(ctx, user)
}

func (s *iamService) IssueSession(_ context.Context, user *models.User) (*Session, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}
	return &Session{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *iamService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		// Nothing to revoke.
		return nil
	}
	err = s.revoked.Create(ctx, &models.RevokedToken{
		JTI:     claims.ID,
		Subject: claims.UserID(),
		Exp:     claims.ExpiresAt.Time,
	})
	if err != nil {
		return fmt.Errorf("revoke session token: %w", err)
	}
	return nil
}

func (s *iamService) SyncExternalUser(ctx context.Context, profile *auth.ExternalProfile) (*models.User, error) {
	if profile == nil || profile.Subject == "" || profile.Email == "" {
		return nil, ErrIncompleteProfile
	}

	user, err := s.users.GetByExternalSubject(ctx, profile.Subject)
	switch {
	case err == nil:
		applyProfile(user, profile)
		if err := s.users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("update synced user: %w", err)
		}
		return user, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("load user by subject: %w", err)
	}

	if profile.EmailVerified {
		user, err := s.users.GetByEmail(ctx, profile.Email)
		switch {
		case err == nil:
			if user.ExternalSubject != nil && *user.ExternalSubject != profile.Subject {
				return nil, fmt.Errorf("email linked to another subject: %w", repository.ErrConflict)
			}
			subject := profile.Subject
			user.ExternalSubject = &subject
			applyProfile(user, profile)
			if err := s.users.Update(ctx, user); err != nil {
				return nil, fmt.Errorf("link user by email: %w", err)
			}
			log.WithField("user_id", user.ID).Info("linked external subject to existing account by verified email")
			return user, nil
		case !errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("load user by email: %w", err)
		}
	}

	subject := profile.Subject
	user = &models.User{
		Username:        profile.PreferredUsername(),
		ExternalSubject: &subject,
		Role:            auth.RoleUser,
	}
	applyProfile(user, profile)
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create synced user: %w", err)
	}
	return user, nil
}

func applyProfile(user *models.User, profile *auth.ExternalProfile) {
	email := profile.Email
	user.Email = &email
	if name := profile.DisplayName(); name != "" {
		user.DisplayName = name
	}
	if profile.Picture != "" {
		user.PictureURL = profile.Picture
	}
}

func (s *iamService) GetUserBySubject(ctx context.Context, subject string) (*models.User, error) {
	return s.users.GetByExternalSubject(ctx, subject)
}

func (s *iamService) CreateLocalUser(ctx context.Context, username, email, password, role string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username is required")
	}
	if role != auth.RoleAdmin && role != auth.RoleUser {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		PasswordHash: &hash,
		Role:         role,
		DisplayName:  username,
	}
	if email = strings.TrimSpace(email); email != "" {
		user.Email = &email
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *iamService) EnsureAdmins(ctx context.Context, admins []config.AdminAccount) int {
	created := 0
	for i, admin := range admins {
		logger := log.WithFields(log.Fields{"admin": i + 1, "username": admin.Username})
		if admin.Username == "" {
			continue
		}
		if admin.Password == "" {
			logger.Warn("skipping bootstrap admin without a configured password")
			continue
		}

		_, err := s.users.GetByUsername(ctx, admin.Username)
		if err == nil {
			logger.Debug("bootstrap admin already exists")
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			logger.WithError(err).Error("failed to look up bootstrap admin")
			continue
		}

		_, err = s.CreateLocalUser(ctx, admin.Username, "", admin.Password, auth.RoleAdmin)
		switch {
		case err == nil:
			created++
			logger.Info("created bootstrap admin")
		case errors.Is(err, repository.ErrConflict):
			logger.Debug("bootstrap admin created concurrently")
		default:
			logger.WithError(err).Error("failed to create bootstrap admin")
		}
	}
	return created
}

func (s *iamService) PurgeRevokedTokens(ctx context.Context) (int64, error) {
	n, err := s.revoked.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("purge revoked tokens: %w", err)
	}
	return n, nil
}
