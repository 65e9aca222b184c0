package services

import (
	"fmt"
	"net/http"

	"github.com/lborres/gatekeep/core"
)

// Operation ids shared with the HTTP adapters.
const (
	OpRegister      = "register"
	OpLogin         = "login"
	OpRefreshAccess = "refreshAccess"
	OpTokenRefresh  = "tokenRefresh"
	OpRevokeCurrent = "revokeCurrent"
	OpRevokeAll     = "revokeAll"
	OpOAuthStart    = "oauthStart"
	OpOAuthCallback = "oauthCallback"
	OpMe            = "me"
	OpAdminStatus   = "adminStatus"
	OpHealth        = "health"
)

// BaseEndpoints returns framework-agnostic descriptions of every route.
// Adapters bind a handler to each by OperationID.
func BaseEndpoints() []core.Endpoint {
	return []core.Endpoint{
		{
			Path:        "/api/auth/register",
			Method:      http.MethodPost,
			RateLimited: true,
			Metadata: core.EndpointMetadata{
				OperationID:   OpRegister,
				Description:   "Register a local identity with email and password",
				SuccessStatus: http.StatusCreated,
			},
		},
		{
			Path:        "/api/auth/login",
			Method:      http.MethodPost,
			RateLimited: true,
			Metadata: core.EndpointMetadata{
				OperationID:   OpLogin,
				Description:   "Log in with email and password and receive an access/refresh token pair",
				SuccessStatus: http.StatusCreated,
			},
		},
		{
			Path:        "/api/auth/refresh",
			Method:      http.MethodPost,
			RateLimited: true,
			Metadata: core.EndpointMetadata{
				OperationID:   OpRefreshAccess,
				Description:   "Exchange a live refresh token for a new access token",
				SuccessStatus: http.StatusOK,
			},
		},
		{
			Path:        "/api/token/refresh",
			Method:      http.MethodPost,
			RateLimited: true,
			Metadata: core.EndpointMetadata{
				OperationID:   OpTokenRefresh,
				Description:   "Exchange a live refresh token for a new access token",
				SuccessStatus: http.StatusOK,
			},
		},
		{
			Path:        "/api/token/invalidate",
			Method:      http.MethodPost,
			RateLimited: true,
			Metadata: core.EndpointMetadata{
				OperationID:   OpRevokeCurrent,
				Description:   "Revoke the session of one refresh token",
				SuccessStatus: http.StatusOK,
			},
		},
		{
			Path:        "/api/token/invalidate/all",
			Method:      http.MethodPost,
			RateLimited: true,
			Metadata: core.EndpointMetadata{
				OperationID:   OpRevokeAll,
				Description:   "Revoke every session of the identity owning a refresh token",
				SuccessStatus: http.StatusOK,
			},
		},
		{
			Path:        "/api/auth/oauth/:provider",
			Method:      http.MethodGet,
			RateLimited: true,
			Metadata: core.EndpointMetadata{
				OperationID:   OpOAuthStart,
				Description:   "Redirect to the consent page of an identity provider",
				SuccessStatus: http.StatusFound,
			},
		},
		{
			Path:        "/api/auth/oauth/:provider/callback",
			Method:      http.MethodGet,
			RateLimited: true,
			Metadata: core.EndpointMetadata{
				OperationID:   OpOAuthCallback,
				Description:   "Complete a provider login and receive an access/refresh token pair",
				SuccessStatus: http.StatusCreated,
			},
		},
		{
			Path:        "/api/auth/me",
			Method:      http.MethodGet,
			Access:      core.AccessAuthenticated,
			RateLimited: true,
			Metadata: core.EndpointMetadata{
				OperationID:   OpMe,
				Description:   "Return the claims of the presented access token",
				SuccessStatus: http.StatusOK,
			},
		},
		{
			Path:        "/api/admin/status",
			Method:      http.MethodGet,
			Access:      core.AccessAdmin,
			RateLimited: true,
			Metadata: core.EndpointMetadata{
				OperationID:   OpAdminStatus,
				Description:   "Store health for administrators",
				SuccessStatus: http.StatusOK,
			},
		},
		{
			Path:   "/healthz",
			Method: http.MethodGet,
			Metadata: core.EndpointMetadata{
				OperationID:   OpHealth,
				Description:   "Liveness and store connectivity",
				SuccessStatus: http.StatusOK,
			},
		},
	}
}

// EndpointRegistry holds endpoints keyed by METHOD:PATH, rejecting
// duplicates, and returns them in registration order.
type EndpointRegistry struct {
	endpoints map[string]*core.Endpoint
	order     []string
}

// NewEndpointRegistry creates a registry with BaseEndpoints registered.
func NewEndpointRegistry() *EndpointRegistry {
	reg := &EndpointRegistry{endpoints: make(map[string]*core.Endpoint)}

	base := BaseEndpoints()
	for i := range base {
		// base paths are unique
		_ = reg.register(&base[i])
	}
	return reg
}

func endpointKey(ep *core.Endpoint) string {
	return fmt.Sprintf("%s:%s", ep.Method, ep.Path)
}

func (r *EndpointRegistry) register(ep *core.Endpoint) error {
	key := endpointKey(ep)
	if _, exists := r.endpoints[key]; exists {
		return fmt.Errorf("endpoint conflict: %s %s already registered", ep.Method, ep.Path)
	}
	r.endpoints[key] = ep
	r.order = append(r.order, key)
	return nil
}

// RegisterPlugin registers extra endpoints. If any of them conflicts with a
// registered endpoint or with another in the batch, none are registered.
func (r *EndpointRegistry) RegisterPlugin(endpoints []core.Endpoint) error {
	seen := make(map[string]bool, len(endpoints))
	for i := range endpoints {
		key := endpointKey(&endpoints[i])
		if _, exists := r.endpoints[key]; exists {
			return fmt.Errorf("plugin endpoint conflict: %s %s already registered", endpoints[i].Method, endpoints[i].Path)
		}
		if seen[key] {
			return fmt.Errorf("plugin contains duplicate endpoint: %s %s", endpoints[i].Method, endpoints[i].Path)
		}
		seen[key] = true
	}

	for i := range endpoints {
		ep := endpoints[i]
		_ = r.register(&ep)
	}
	return nil
}

// Endpoints returns all registered endpoints in registration order.
func (r *EndpointRegistry) Endpoints() []*core.Endpoint {
	result := make([]*core.Endpoint, 0, len(r.order))
	for _, key := range r.order {
		result = append(result, r.endpoints[key])
	}
	return result
}

// Lookup returns the endpoint registered for method and path.
func (r *EndpointRegistry) Lookup(method, path string) (*core.Endpoint, bool) {
	ep, ok := r.endpoints[fmt.Sprintf("%s:%s", method, path)]
	return ep, ok
}
