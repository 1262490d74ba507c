package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when a login names an unknown user so both
// failure paths spend the same bcrypt time.
var dummyHash = []byte("$2a$12$C6UzMDM.H6dfI/f/IKcEeO5H1eUUhMgWxq/9Cq0S9EBVE3KjWQxMq")

// HashPassword returns a bcrypt hash of password at cost.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares password with hash. A nil hash always fails after
// doing the same amount of work as a real comparison.
func CheckPassword(hash *string, password string) error {
	if hash == nil || *hash == "" {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
