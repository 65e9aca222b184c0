package fiber

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/gatekeep"
)

const claimsKey = "claims"

// rateLimitedBody is the 429 payload clients already parse.
var rateLimitedBody = fiber.Map{"message": "Too Many Request!"}

// Protected returns middleware that requires a valid access token and stores
// its claims for downstream handlers. It is usable once RegisterRoutes ran.
func (a *Adapter) Protected() fiber.Handler {
	return a.identify(a.auth, gatekeep.AccessAuthenticated)
}

// AdminOnly is Protected restricted to the Admin role.
func (a *Adapter) AdminOnly() fiber.Handler {
	return a.identify(a.auth, gatekeep.AccessAdmin)
}

// identify resolves the caller from the Authorization header. Public routes
// tolerate a missing or bad token; the claims then only select the rate
// limit subject.
func (a *Adapter) identify(auth gatekeep.AuthHandler, access gatekeep.Access) fiber.Handler {
	return func(c fiber.Ctx) error {
		token, err := extractToken(c)
		if err == nil {
			var claims *gatekeep.Claims
			if claims, err = auth.Authenticate(c.Context(), token); err == nil {
				c.Locals(claimsKey, claims)
			}
		}

		switch access {
		case gatekeep.AccessPublic:
			return c.Next()
		case gatekeep.AccessAdmin:
			if err == nil && ClaimsFrom(c).Role != gatekeep.RoleAdmin {
				err = gatekeep.ErrInsufficientRole
			}
		}
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(gatekeep.ErrorResponse{
				Error: errorMessage(err),
			})
		}
		return c.Next()
	}
}

func (a *Adapter) rateLimit(limiter gatekeep.Limiter, ep *gatekeep.Endpoint) fiber.Handler {
	return func(c fiber.Ctx) error {
		if !ep.RateLimited || limiter == nil {
			return c.Next()
		}
		// The registered pattern, not c.Path(): fiber matches paths
		// case-insensitively and ignores a trailing slash.
		if !limiter.Admit(c.Context(), ep.Path, subject(c)) {
			return c.Status(fiber.StatusTooManyRequests).JSON(rateLimitedBody)
		}
		return c.Next()
	}
}

// ClaimsFrom returns the claims stored by the auth middleware, or nil.
func ClaimsFrom(c fiber.Ctx) *gatekeep.Claims {
	claims, _ := c.Locals(claimsKey).(*gatekeep.Claims)
	return claims
}

// subject is the identity id of an authenticated caller, else the client IP.
func subject(c fiber.Ctx) string {
	if claims := ClaimsFrom(c); claims != nil {
		return claims.ID
	}
	return c.IP()
}

// extractToken reads a Bearer token from the Authorization header.
func extractToken(c fiber.Ctx) (string, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return "", gatekeep.ErrMissingAuthHeader
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", gatekeep.ErrInvalidAuthHeader
	}
	return strings.TrimSpace(token), nil
}
