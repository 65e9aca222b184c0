package fiber

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"golang.org/x/oauth2"

	"github.com/lborres/gatekeep"
	"github.com/lborres/gatekeep/pkg/crypto"
)

const (
	refreshCookie   = "refresh_token"
	oauthCookiePath = "/api/auth/oauth"
	oauthCookieAge  = 600
)

var (
	errInvalidBody   = errors.New("invalid request body")
	errStateMismatch = errors.New("oauth state mismatch")
)

// handleRegister returns a handler for the register endpoint
func handleRegister(auth gatekeep.AuthHandler, v *validator.Validate) fiber.Handler {
	return func(c fiber.Ctx) error {
		var input gatekeep.RegisterInput
		if err := bindBody(c, v, &input); err != nil {
			return handleAuthError(c, err)
		}

		identity, err := auth.Register(c.Context(), input)
		if err != nil {
			return handleAuthError(c, err)
		}

		return c.Status(http.StatusCreated).JSON(fiber.Map{
			"message":  "User Registered Successfully!",
			"identity": identity,
		})
	}
}

// handleLogin returns a handler for the login endpoint
func handleLogin(auth gatekeep.AuthHandler, v *validator.Validate) fiber.Handler {
	return func(c fiber.Ctx) error {
		var input gatekeep.LoginInput
		if err := bindBody(c, v, &input); err != nil {
			return handleAuthError(c, err)
		}

		pair, err := auth.Login(c.Context(), input)
		if err != nil {
			return handleAuthError(c, err)
		}

		return c.Status(http.StatusCreated).JSON(pair)
	}
}

// handleRefreshAccess serves both refresh routes.
func handleRefreshAccess(auth gatekeep.AuthHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		result, err := auth.RefreshAccess(c.Context(), extractRefreshToken(c))
		if err != nil {
			return handleAuthError(c, err)
		}
		return c.Status(http.StatusOK).JSON(result)
	}
}

func handleRevokeCurrent(auth gatekeep.AuthHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		result, err := auth.RevokeCurrent(c.Context(), extractRefreshToken(c))
		if err != nil {
			return handleAuthError(c, err)
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"message": "Successfully revoked current session",
			"email":   result.Email,
		})
	}
}

func handleRevokeAll(auth gatekeep.AuthHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		result, err := auth.RevokeAll(c.Context(), extractRefreshToken(c))
		if err != nil {
			return handleAuthError(c, err)
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"message": "Successfully revoked all sessions",
			"email":   result.Email,
		})
	}
}

// handleOAuthStart stores a fresh state and PKCE verifier in httpOnly
// cookies and redirects to the provider's consent page.
func handleOAuthStart(auth gatekeep.AuthHandler, secure bool) fiber.Handler {
	return func(c fiber.Ctx) error {
		provider, err := gatekeep.ParseProvider(c.Params("provider"))
		if err != nil {
			return handleAuthError(c, badRequest("oauth", err))
		}

		state, err := crypto.GenerateToken(crypto.DefaultTokenLength)
		if err != nil {
			return handleAuthError(c, err)
		}
		verifier := oauth2.GenerateVerifier()

		url, err := auth.AuthCodeURL(provider, state, verifier)
		if err != nil {
			return handleAuthError(c, err)
		}

		for name, value := range map[string]string{
			stateCookie(provider):    state,
			verifierCookie(provider): verifier,
		} {
			c.Cookie(&fiber.Cookie{
				Name:     name,
				Value:    value,
				Path:     oauthCookiePath,
				MaxAge:   oauthCookieAge,
				HTTPOnly: true,
				Secure:   secure,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		}
		return c.Redirect().Status(http.StatusFound).To(url)
	}
}

func handleOAuthCallback(auth gatekeep.AuthHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		provider, err := gatekeep.ParseProvider(c.Params("provider"))
		if err != nil {
			return handleAuthError(c, badRequest("oauth", err))
		}

		state := c.Cookies(stateCookie(provider))
		verifier := c.Cookies(verifierCookie(provider))
		expireCookie(c, stateCookie(provider))
		expireCookie(c, verifierCookie(provider))

		query := c.Query("state")
		if state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(query)) != 1 {
			return handleAuthError(c, badRequest("oauth", errStateMismatch))
		}

		pair, err := auth.OAuthLogin(c.Context(), provider, c.Query("code"), verifier)
		if err != nil {
			return handleAuthError(c, err)
		}
		return c.Status(http.StatusCreated).JSON(pair)
	}
}

func handleMe() fiber.Handler {
	return func(c fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(ClaimsFrom(c))
	}
}

func handleAdminStatus(auth gatekeep.AuthHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		report := auth.Health(c.Context())
		return c.Status(healthStatus(report)).JSON(fiber.Map{
			"admin":  ClaimsFrom(c).Email,
			"health": report,
		})
	}
}

func handleHealth(auth gatekeep.AuthHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		report := auth.Health(c.Context())
		return c.Status(healthStatus(report)).JSON(report)
	}
}

func healthStatus(report gatekeep.HealthReport) int {
	if report.Healthy() {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

// expireCookie deletes an OAuth cookie; the path must match the one it was set with.
func expireCookie(c fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Path:     oauthCookiePath,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
	})
}

func stateCookie(p gatekeep.Provider) string    { return string(p) + "_oauth_state" }
func verifierCookie(p gatekeep.Provider) string { return string(p) + "_code_verifier" }

// bindBody decodes and validates a JSON body.
func bindBody(c fiber.Ctx, v *validator.Validate, out any) error {
	if err := c.Bind().Body(out); err != nil {
		return badRequest("bind", errInvalidBody)
	}
	if err := v.Struct(out); err != nil {
		return badRequest("validate", validationError(err))
	}
	return nil
}

// validationError maps the first failed rule to a domain sentinel.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errInvalidBody
	}
	fe := verrs[0]
	switch fe.Field() {
	case "Email":
		if fe.Tag() == "required" {
			return gatekeep.ErrEmailRequired
		}
		return gatekeep.ErrInvalidEmail
	case "Password":
		switch fe.Tag() {
		case "required":
			return gatekeep.ErrPasswordRequired
		case "min":
			return gatekeep.ErrPasswordTooShort
		case "max":
			return gatekeep.ErrPasswordTooLong
		}
	}
	return errInvalidBody
}

// extractRefreshToken reads refreshToken from the JSON body, falling back
// to the refresh cookie.
func extractRefreshToken(c fiber.Ctx) string {
	var input gatekeep.RefreshInput
	if len(c.Body()) > 0 {
		if err := c.Bind().Body(&input); err == nil && input.RefreshToken != "" {
			return input.RefreshToken
		}
	}
	return c.Cookies(refreshCookie)
}

func badRequest(op string, err error) error {
	return &gatekeep.Error{Kind: gatekeep.KindBadRequest, Op: op, Err: err}
}

// handleAuthError maps authentication errors to appropriate HTTP responses
func handleAuthError(c fiber.Ctx, err error) error {
	return c.Status(mapErrorToStatus(err)).JSON(gatekeep.ErrorResponse{
		Error: errorMessage(err),
	})
}

// mapErrorToStatus maps error kinds to HTTP status codes
func mapErrorToStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch gatekeep.KindOf(err) {
	case gatekeep.KindBadRequest:
		return http.StatusBadRequest
	case gatekeep.KindUnauthorized:
		return http.StatusUnauthorized
	case gatekeep.KindForbidden:
		return http.StatusForbidden
	case gatekeep.KindNotFound:
		return http.StatusNotFound
	case gatekeep.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage hides internal causes and drops the op prefix.
func errorMessage(err error) string {
	var e *gatekeep.Error
	if errors.As(err, &e) {
		if e.Kind == gatekeep.KindInternal {
			return http.StatusText(http.StatusInternalServerError)
		}
		return e.Err.Error()
	}
	if isClientSentinel(err) {
		return err.Error()
	}
	return http.StatusText(http.StatusInternalServerError)
}

func isClientSentinel(err error) bool {
	for _, target := range []error{
		gatekeep.ErrMissingAuthHeader,
		gatekeep.ErrInvalidAuthHeader,
		gatekeep.ErrInsufficientRole,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
