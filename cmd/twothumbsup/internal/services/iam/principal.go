package iam

import (
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/auth"
	"github.com/richie2909/TwoThumbsUp/cmd/twothumbsup/internal/db/models"
)

func principalFromUser(user *models.User) (*auth.Principal, error) {
	principal, err := auth.NewUserPrincipal(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	principal.Username = user.Username
	principal.Email = user.EmailValue()
	principal.DisplayName = user.DisplayName
	principal.PictureURL = user.PictureURL
	return principal, nil
}

// UserView is the public projection of a user record returned by the API.
type UserView struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role"`
	DisplayName string `json:"displayName,omitempty"`
	PictureURL  string `json:"pictureUrl,omitempty"`
}

// ViewOfUser projects a stored user.
func ViewOfUser(user *models.User) UserView {
	return UserView{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.EmailValue(),
		Role:        user.Role,
		DisplayName: user.DisplayName,
		PictureURL:  user.PictureURL,
	}
}

// ViewOfPrincipal projects a resolved principal.
func ViewOfPrincipal(p *auth.Principal) UserView {
	return UserView{
		ID:          p.ID,
		Username:    p.Username,
		Email:       p.Email,
		Role:        p.Role,
		DisplayName: p.DisplayName,
		PictureURL:  p.PictureURL,
	}
}
