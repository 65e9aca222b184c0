package core

// Access is the protection level of an endpoint.
type Access uint8

const (
	AccessPublic Access = iota
	AccessAuthenticated
	AccessAdmin
)

// Endpoint describes one framework-agnostic route. Adapters resolve the
// handler from Metadata.OperationID.
type Endpoint struct {
	Path   string
	Method string
	Access Access
	// RateLimited routes pass through the Limiter before the handler.
	RateLimited bool
	Metadata    EndpointMetadata
}

type EndpointMetadata struct {
	OperationID string
	Description string
	// SuccessStatus is the status code written on success.
	SuccessStatus int
}

// ErrorResponse represents an error response structure
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
