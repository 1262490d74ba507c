package auth

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ExternalProfile is the identity carried by a verified external token.
type ExternalProfile struct {
	Subject       string `mapstructure:"sub"`
	Email         string `mapstructure:"email"`
	EmailVerified bool   `mapstructure:"email_verified"`
	Nickname      string `mapstructure:"nickname"`
	Name          string `mapstructure:"name"`
	Picture       string `mapstructure:"picture"`
}

// DisplayName returns the best human readable name in the profile.
func (p *ExternalProfile) DisplayName() string {
	switch {
	case p.Name != "":
		return p.Name
	case p.Nickname != "":
		return p.Nickname
	default:
		return p.Email
	}
}

// PreferredUsername picks nickname, then name, then the local part of the email.
func (p *ExternalProfile) PreferredUsername() string {
	if p.Nickname != "" {
		return p.Nickname
	}
	if p.Name != "" {
		return p.Name
	}
	if at := strings.IndexByte(p.Email, '@'); at > 0 {
		return p.Email[:at]
	}
	return p.Email
}

// DecodeExternalProfile maps raw JWT claims onto an ExternalProfile.
// Unknown claims are ignored; email_verified may arrive as a bool or a string.
func DecodeExternalProfile(claims map[string]any) (*ExternalProfile, error) {
	profile := &ExternalProfile{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           profile,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("build claims decoder: %w", err)
	}
	if err := decoder.Decode(claims); err != nil {
		return nil, fmt.Errorf("decode external claims: %w", err)
	}
	return profile, nil
}
