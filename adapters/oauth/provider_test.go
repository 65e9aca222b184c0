package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"

	"github.com/lborres/gatekeep"
)

var testCreds = Credentials{ClientID: "client", ClientSecret: "secret", RedirectURL: "http://app/callback"}

// fakeProvider serves a token endpoint and canned API responses.
type fakeProvider struct {
	*httptest.Server
	lastVerifier string
	routes       map[string]any
}

func newFakeProvider(t *testing.T, routes map[string]any) *fakeProvider {
	t.Helper()
	f := &fakeProvider{routes: routes}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		f.lastVerifier = r.Form.Get("code_verifier")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"provider-token","token_type":"bearer"}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		body, ok := f.routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer provider-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(body)
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeProvider) endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   f.URL + "/authorize",
		TokenURL:  f.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

func TestProvider_AuthCodeURL(t *testing.T) {
	p := NewGitHub(testCreds)
	verifier := oauth2.GenerateVerifier()

	raw := p.AuthCodeURL("state-123", verifier)

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid URL %q: %v", raw, err)
	}
	q := u.Query()
	checks := map[string]string{
		"state":                 "state-123",
		"client_id":             "client",
		"redirect_uri":          "http://app/callback",
		"code_challenge_method": "S256",
		"code_challenge":        oauth2.S256ChallengeFromVerifier(verifier),
		"scope":                 "user:email",
	}
	for key, want := range checks {
		if got := q.Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
	if strings.Contains(raw, verifier) {
		t.Error("verifier must not appear in the consent URL")
	}
}

func TestGoogle_Exchange(t *testing.T) {
	tests := []struct {
		name     string
		info     googleUserInfo
		code     string
		want     string
		wantErr  bool
		errMatch error
	}{
		{
			name: "verified email",
			info: googleUserInfo{Email: "a@gmail.com", EmailVerified: true},
			code: "good-code",
			want: "a@gmail.com",
		},
		{
			name:     "unverified email is refused",
			info:     googleUserInfo{Email: "a@gmail.com"},
			code:     "good-code",
			wantErr:  true,
			errMatch: ErrNoEmail,
		},
		{
			name:     "bad code",
			info:     googleUserInfo{Email: "a@gmail.com", EmailVerified: true},
			code:     "bad-code",
			wantErr:  true,
			errMatch: gatekeep.ErrProviderRejected,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			fake := newFakeProvider(t, map[string]any{"/userinfo": test.info})
			p := newGoogle(testCreds, fake.endpoint(), fake.URL+"/userinfo")

			// Act
			email, err := p.Exchange(context.Background(), test.code, "verifier-abc")

			// Assert
			if test.wantErr {
				if err == nil {
					t.Fatalf("Exchange() = %q, want error", email)
				}
				if test.errMatch != nil && !errors.Is(err, test.errMatch) {
					t.Errorf("Exchange() error = %v, want %v", err, test.errMatch)
				}
				return
			}
			if err != nil {
				t.Fatalf("Exchange() error = %v", err)
			}
			if email != test.want {
				t.Errorf("Exchange() = %q, want %q", email, test.want)
			}
			if fake.lastVerifier != "verifier-abc" {
				t.Errorf("code_verifier = %q, want verifier-abc", fake.lastVerifier)
			}
		})
	}
}

func TestGitHub_Exchange(t *testing.T) {
	tests := []struct {
		name    string
		routes  map[string]any
		want    string
		wantErr bool
	}{
		{
			name: "primary verified address wins",
			routes: map[string]any{
				"/user/emails": []githubEmail{
					{Email: "old@x.com", Verified: true},
					{Email: "main@x.com", Primary: true, Verified: true},
				},
				"/user": githubUser{Email: "public@x.com"},
			},
			want: "main@x.com",
		},
		{
			name: "falls back to the profile email",
			routes: map[string]any{
				"/user/emails": []githubEmail{{Email: "main@x.com", Primary: true}},
				"/user":        githubUser{Email: "public@x.com"},
			},
			want: "public@x.com",
		},
		{
			name:    "no email at all",
			routes:  map[string]any{"/user": githubUser{}},
			wantErr: true,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			fake := newFakeProvider(t, test.routes)
			p := newGitHub(testCreds, fake.endpoint(), fake.URL)

			email, err := p.Exchange(context.Background(), "good-code", "")

			if test.wantErr {
				if !errors.Is(err, ErrNoEmail) {
					t.Errorf("Exchange() error = %v, want ErrNoEmail", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Exchange() error = %v", err)
			}
			if email != test.want {
				t.Errorf("Exchange() = %q, want %q", email, test.want)
			}
		})
	}
}

// Requirement: an unreachable token endpoint is not reported as a refused login
func TestProvider_ExchangeUnreachable(t *testing.T) {
	// Arrange
	fake := newFakeProvider(t, nil)
	p := newGoogle(testCreds, fake.endpoint(), fake.URL+"/userinfo")
	fake.Close()

	// Act
	_, err := p.Exchange(context.Background(), "good-code", "verifier-abc")

	// Assert
	if err == nil {
		t.Fatal("Exchange() error = nil, want transport error")
	}
	if errors.Is(err, gatekeep.ErrProviderRejected) {
		t.Errorf("Exchange() error = %v, must not wrap ErrProviderRejected", err)
	}
}

func TestConfigured(t *testing.T) {
	providers := Configured(testCreds, Credentials{ClientID: "only-id"})

	if len(providers) != 1 || providers[0].Name() != gatekeep.ProviderGoogle {
		t.Fatalf("Configured() = %v, want only google", providers)
	}
}
