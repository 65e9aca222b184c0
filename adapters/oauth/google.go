package oauth

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/lborres/gatekeep"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

type googleUserInfo struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// NewGoogle builds the Google provider.
func NewGoogle(creds Credentials) *Provider {
	return newGoogle(creds, google.Endpoint, googleUserInfoURL)
}

func newGoogle(creds Credentials, endpoint oauth2.Endpoint, userInfoURL string) *Provider {
	return &Provider{
		name: gatekeep.ProviderGoogle,
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		email: func(ctx context.Context, client *http.Client, _ *oauth2.Token) (string, error) {
			var info googleUserInfo
			if err := getJSON(ctx, client, userInfoURL, &info); err != nil {
				return "", err
			}
			if !info.EmailVerified {
				return "", ErrNoEmail
			}
			return info.Email, nil
		},
	}
}
