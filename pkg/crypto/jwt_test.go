package crypto

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lborres/gatekeep/core"
)

const (
	testAccessSecret  = "access-secret-0123456789abcdefghijkl"
	testRefreshSecret = "refresh-secret-0123456789abcdefghijk"
)

type seqIDs struct{ n int }

func (s *seqIDs) NewID() (string, error) {
	s.n++
	return fmt.Sprintf("jti-%d", s.n), nil
}

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

func newTestCodec(c *clock) *JWTCodec {
	return NewJWTCodec(JWTConfig{
		Issuer:        "gatekeep-test",
		AccessSecret:  testAccessSecret,
		RefreshSecret: testRefreshSecret,
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}, &seqIDs{}, WithClock(c.Now))
}

var aliceClaims = core.Claims{ID: "u-1", Email: "alice@example.com", Role: core.RoleUser, Provider: core.ProviderLocal}

// Requirement: verifying a freshly issued token returns the claims it was issued with.
func TestJWTCodec_RoundTrip(t *testing.T) {
	kinds := []core.TokenKind{core.AccessToken, core.RefreshToken}

	for _, kind := range kinds {
		kind := kind
		t.Run(kind.String(), func(t *testing.T) {
			// Arrange
			codec := newTestCodec(&clock{t: time.Unix(1_700_000_000, 0)})

			// Act
			token, err := codec.Issue(kind, aliceClaims)
			if err != nil {
				t.Fatalf("Issue() error = %v", err)
			}
			got, err := codec.Verify(token, kind)

			// Assert
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if *got != aliceClaims {
				t.Errorf("Verify() = %+v, want %+v", *got, aliceClaims)
			}
		})
	}
}

// Requirement: a token is rejected once its TTL has elapsed.
func TestJWTCodec_Expiry(t *testing.T) {
	tests := []struct {
		name    string
		kind    core.TokenKind
		advance time.Duration
		wantErr bool
	}{
		{name: "access just before expiry", kind: core.AccessToken, advance: 14 * time.Minute},
		{name: "access after expiry", kind: core.AccessToken, advance: 16 * time.Minute, wantErr: true},
		{name: "refresh after a day", kind: core.RefreshToken, advance: 24 * time.Hour},
		{name: "refresh after ttl", kind: core.RefreshToken, advance: 8 * 24 * time.Hour, wantErr: true},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			c := &clock{t: time.Unix(1_700_000_000, 0)}
			codec := newTestCodec(c)
			token, err := codec.Issue(test.kind, aliceClaims)
			if err != nil {
				t.Fatalf("Issue() error = %v", err)
			}

			c.t = c.t.Add(test.advance)
			_, err = codec.Verify(token, test.kind)

			if test.wantErr && !errors.Is(err, core.ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
			if !test.wantErr && err != nil {
				t.Errorf("Verify() error = %v, want nil", err)
			}
		})
	}
}

func TestJWTCodec_RejectsForeignTokens(t *testing.T) {
	c := &clock{t: time.Now()}
	codec := newTestCodec(c)
	access, _ := codec.IssueAccess(aliceClaims)
	refresh, _ := codec.IssueRefresh(aliceClaims)

	otherKey := NewJWTCodec(JWTConfig{
		Issuer:        "gatekeep-test",
		AccessSecret:  "another-access-secret-0123456789abcd",
		RefreshSecret: "another-refresh-secret-0123456789abc",
	}, nil, WithClock(c.Now))
	forged, _ := otherKey.IssueRefresh(aliceClaims)

	otherIssuer := NewJWTCodec(JWTConfig{
		Issuer:        "someone-else",
		AccessSecret:  testAccessSecret,
		RefreshSecret: testRefreshSecret,
	}, nil, WithClock(c.Now))
	foreign, _ := otherIssuer.IssueRefresh(aliceClaims)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"id": "u-1"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
		kind  core.TokenKind
	}{
		{name: "access token as refresh", token: access, kind: core.RefreshToken},
		{name: "refresh token as access", token: refresh, kind: core.AccessToken},
		{name: "signed with another secret", token: forged, kind: core.RefreshToken},
		{name: "another issuer", token: foreign, kind: core.RefreshToken},
		{name: "alg none", token: unsigned, kind: core.AccessToken},
		{name: "garbage", token: "not.a.jwt", kind: core.AccessToken},
		{name: "tampered", token: refresh[:len(refresh)-2] + "xx", kind: core.RefreshToken},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			if _, err := codec.Verify(test.token, test.kind); !errors.Is(err, core.ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

// Requirement: a correctly signed token with a missing claim is rejected.
func TestJWTCodec_RejectsIncompleteClaims(t *testing.T) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":    "u-1",
		"email": "alice@example.com",
		"role":  "User",
		"iss":   "gatekeep-test",
		"aud":   "refresh",
		"exp":   now.Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testRefreshSecret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	_, err = newTestCodec(&clock{t: now}).Verify(signed, core.RefreshToken)

	if !errors.Is(err, core.ErrInvalidToken) || !errors.Is(err, core.ErrIncompleteClaims) {
		t.Errorf("Verify() error = %v, want ErrInvalidToken wrapping ErrIncompleteClaims", err)
	}
}

// Requirement: an unconfigured secret is an error, never an empty token.
func TestJWTCodec_MissingSecret(t *testing.T) {
	codec := NewJWTCodec(JWTConfig{AccessSecret: testAccessSecret}, nil)

	token, err := codec.IssueRefresh(aliceClaims)

	if token != "" {
		t.Errorf("IssueRefresh() token = %q, want empty", token)
	}
	if !errors.Is(err, core.ErrSigningKeyMissing) {
		t.Errorf("IssueRefresh() error = %v, want ErrSigningKeyMissing", err)
	}
	if _, err := codec.Verify("x.y.z", core.RefreshToken); !errors.Is(err, core.ErrSigningKeyMissing) {
		t.Errorf("Verify() error = %v, want ErrSigningKeyMissing", err)
	}
}

func TestJWTCodec_IssueRejectsIncompleteClaims(t *testing.T) {
	_, err := newTestCodec(&clock{t: time.Now()}).IssueAccess(core.Claims{Email: "a@x.com"})

	if !errors.Is(err, core.ErrIncompleteClaims) {
		t.Errorf("IssueAccess() error = %v, want ErrIncompleteClaims", err)
	}
}

// Requirement: two tokens minted for the same identity in the same second differ.
func TestJWTCodec_UniqueTokensSameInstant(t *testing.T) {
	codec := newTestCodec(&clock{t: time.Unix(1_700_000_000, 0)})

	first, _ := codec.IssueRefresh(aliceClaims)
	second, _ := codec.IssueRefresh(aliceClaims)

	if first == second {
		t.Fatal("tokens issued in the same instant are identical")
	}
	if strings.Count(first, ".") != 2 {
		t.Errorf("token %q is not a compact JWS", first)
	}
}
