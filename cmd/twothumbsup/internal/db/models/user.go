package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User is a durable account. A record may carry a local password hash, an
// external IdP subject, or both.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID              string     `bun:"id,pk"`
	Username        string     `bun:"username,notnull,unique"`
	Email           *string    `bun:"email,unique"`
	PasswordHash    *string    `bun:"password_hash"`           // bcrypt, local accounts only
	ExternalSubject *string    `bun:"external_subject,unique"` // e.g. "auth0|65f0..."
	Role            string     `bun:"role,notnull,default:'user'"`
	DisplayName     string     `bun:"display_name"`
	PictureURL      string     `bun:"picture_url"`
	CreatedAt       time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	LastLoginAt     *time.Time `bun:"last_login_at"`
}

// EmailValue returns the email or "".
func (u *User) EmailValue() string {
	if u == nil || u.Email == nil {
		return ""
	}
	return *u.Email
}
