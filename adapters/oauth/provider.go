// Package oauth adapts OAuth2 identity providers to gatekeep.IdentityProvider.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/lborres/gatekeep"
)

// ErrNoEmail is returned when the provider does not disclose a usable email.
var ErrNoEmail = fmt.Errorf("%w: no verified email", gatekeep.ErrProviderRejected)

const maxBodyBytes = 1 << 20

// emailFunc resolves the email behind an access token.
type emailFunc func(ctx context.Context, client *http.Client, token *oauth2.Token) (string, error)

// Provider runs the authorization code flow with PKCE against one provider.
type Provider struct {
	name   gatekeep.Provider
	config *oauth2.Config
	email  emailFunc
}

var _ gatekeep.IdentityProvider = (*Provider)(nil)

// Credentials are the client registration of one provider.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func (c Credentials) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURL != ""
}

func (p *Provider) Name() gatekeep.Provider { return p.name }

// AuthCodeURL returns the consent page URL carrying state and the S256
// challenge derived from verifier.
func (p *Provider) AuthCodeURL(state, verifier string) string {
	return p.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades code for a provider token and returns its email.
func (p *Provider) Exchange(ctx context.Context, code, verifier string) (string, error) {
	opts := []oauth2.AuthCodeOption{}
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	token, err := p.config.Exchange(ctx, code, opts...)
	if err != nil {
		// An error response from the token endpoint is a refused grant;
		// transport failures and timeouts stay unclassified.
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return "", fmt.Errorf("%s exchange: %w: %w", p.name, gatekeep.ErrProviderRejected, err)
		}
		return "", fmt.Errorf("%s exchange: %w", p.name, err)
	}

	email, err := p.email(ctx, p.config.Client(ctx, token), token)
	if err != nil {
		return "", fmt.Errorf("%s email: %w", p.name, err)
	}
	if email == "" {
		return "", ErrNoEmail
	}
	return email, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(dst)
}
