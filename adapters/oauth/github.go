package oauth

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/lborres/gatekeep"
)

const githubAPIURL = "https://api.github.com"

type githubUser struct {
	Email string `json:"email"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// NewGitHub builds the GitHub provider.
func NewGitHub(creds Credentials) *Provider {
	return newGitHub(creds, github.Endpoint, githubAPIURL)
}

func newGitHub(creds Credentials, endpoint oauth2.Endpoint, apiURL string) *Provider {
	return &Provider{
		name: gatekeep.ProviderGitHub,
		config: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"user:email"},
		},
		email: func(ctx context.Context, client *http.Client, _ *oauth2.Token) (string, error) {
			return githubPrimaryEmail(ctx, client, apiURL)
		},
	}
}

// githubPrimaryEmail prefers the primary verified address and falls back to
// the public profile email for accounts that hide their address list.
func githubPrimaryEmail(ctx context.Context, client *http.Client, apiURL string) (string, error) {
	var emails []githubEmail
	if err := getJSON(ctx, client, apiURL+"/user/emails", &emails); err == nil {
		for _, e := range emails {
			if e.Primary && e.Verified {
				return e.Email, nil
			}
		}
	}

	var user githubUser
	if err := getJSON(ctx, client, apiURL+"/user", &user); err != nil {
		return "", err
	}
	if user.Email == "" {
		return "", ErrNoEmail
	}
	return user.Email, nil
}
