package core

// EventType names a structured event emitted to an Observer.
type EventType string

const (
	EventRegister        EventType = "register"
	EventLogin           EventType = "login"
	EventRefresh         EventType = "refresh"
	EventRevoke          EventType = "revoke"
	EventRevokeAll       EventType = "revoke_all"
	EventOAuth           EventType = "oauth"
	EventRateLimit       EventType = "rate_limit"
	EventLimiterFailOpen EventType = "rate_limit_fail_open"
	EventStoreFailure    EventType = "store_failure"
)

// Outcome values used in events.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Event is a single observation. Subject is an identity id, an email, an IP
// or a token fingerprint; raw secrets never appear in events.
type Event struct {
	Type    EventType
	Outcome string
	Route   string
	Subject string
	Op      string
	Err     error
}
