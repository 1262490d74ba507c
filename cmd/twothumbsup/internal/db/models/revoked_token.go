package models

import (
	"time"

	"github.com/uptrace/bun"
)

// RevokedToken denylists a session token by its jti until the token would
// have expired anyway.
type RevokedToken struct {
	bun.BaseModel `bun:"table:revoked_tokens,alias:rt"`

	JTI       string    `bun:"jti,pk"`
	Subject   string    `bun:"subject,notnull"`
	Exp       time.Time `bun:"exp,notnull"`
	RevokedAt time.Time `bun:"revoked_at,nullzero,notnull,default:current_timestamp"`
}
