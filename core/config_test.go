package core

import (
	"errors"
	"fmt"
	"testing"
)

// Requirement: route-specific rules override the default; unmatched routes use the default.
func TestRateLimitConfig_RuleFor(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	cfg.Routes["/api/auth/login"] = RateLimitRule{Limit: 3, Window: 30}

	tests := []struct {
		route string
		want  RateLimitRule
	}{
		{route: "/api/auth", want: RateLimitRule{Limit: 10, Window: 120}},
		{route: "/api/auth/register", want: RateLimitRule{Limit: 10, Window: 120}},
		{route: "/api/auth/login", want: RateLimitRule{Limit: 3, Window: 30}},
		{route: "/api/token/invalidate/all", want: RateLimitRule{Limit: 15, Window: 120}},
		{route: "/api/authors", want: RateLimitRule{Limit: 5, Window: 60}},
		{route: "/healthz", want: RateLimitRule{Limit: 5, Window: 60}},
	}

	for _, test := range tests {
		test := test
		t.Run(test.route, func(t *testing.T) {
			if got := cfg.RuleFor(test.route); got != test.want {
				t.Errorf("RuleFor(%q) = %+v, want %+v", test.route, got, test.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "plain error is internal", err: errors.New("boom"), want: KindInternal},
		{name: "typed error", err: E(KindConflict, "register", ErrIdentityExists), want: KindConflict},
		{name: "wrapped typed error", err: fmt.Errorf("outer: %w", E(KindNotFound, "login", ErrIdentityNotFound)), want: KindNotFound},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			if got := KindOf(test.err); got != test.want {
				t.Errorf("KindOf() = %v, want %v", got, test.want)
			}
		})
	}
}

func TestError_UnwrapsSentinel(t *testing.T) {
	err := E(KindUnauthorized, "login", ErrInvalidCredentials)

	if !errors.Is(err, ErrInvalidCredentials) {
		t.Error("errors.Is should see the wrapped sentinel")
	}
	if err.Error() != "login: invalid email or password" {
		t.Errorf("Error() = %q", err.Error())
	}
}
