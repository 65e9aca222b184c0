package fiber

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/lborres/gatekeep"
)

type Adapter struct {
	app      *fiber.App
	validate *validator.Validate
	auth     gatekeep.AuthHandler
	// Secure marks OAuth cookies Secure; disable only for plain-HTTP development.
	Secure bool
}

var _ gatekeep.HTTPAdapter = (*Adapter)(nil)

func New(app *fiber.App) *Adapter {
	return &Adapter{
		app:      app,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		Secure:   true,
	}
}

// RegisterRoutes mounts every endpoint as identify -> rate limit -> handler.
// An endpoint whose operation has no handler is an error and nothing after
// it is mounted.
func (a *Adapter) RegisterRoutes(handler gatekeep.AuthHandler, limiter gatekeep.Limiter, endpoints []*gatekeep.Endpoint) error {
	a.auth = handler
	handlers := a.handlers(handler)

	for _, ep := range endpoints {
		h, ok := handlers[ep.Metadata.OperationID]
		if !ok {
			return fmt.Errorf("no handler for operation %q (%s %s)", ep.Metadata.OperationID, ep.Method, ep.Path)
		}
		a.app.Add([]string{ep.Method}, ep.Path, a.identify(handler, ep.Access), a.rateLimit(limiter, ep), h)
	}
	return nil
}

func (a *Adapter) handlers(auth gatekeep.AuthHandler) map[string]fiber.Handler {
	refresh := handleRefreshAccess(auth)
	return map[string]fiber.Handler{
		gatekeep.OpRegister:      handleRegister(auth, a.validate),
		gatekeep.OpLogin:         handleLogin(auth, a.validate),
		gatekeep.OpRefreshAccess: refresh,
		gatekeep.OpTokenRefresh:  refresh,
		gatekeep.OpRevokeCurrent: handleRevokeCurrent(auth),
		gatekeep.OpRevokeAll:     handleRevokeAll(auth),
		gatekeep.OpOAuthStart:    handleOAuthStart(auth, a.Secure),
		gatekeep.OpOAuthCallback: handleOAuthCallback(auth),
		gatekeep.OpMe:            handleMe(),
		gatekeep.OpAdminStatus:   handleAdminStatus(auth),
		gatekeep.OpHealth:        handleHealth(auth),
	}
}
