// Package queue defines message payloads exchanged over the message broker.
package queue

// AuditQueueName is the durable queue carrying account audit events.
const AuditQueueName = "rbac.audit"

// Audit event types.
const (
	EventUserRegistered = "user.registered"
	EventUserLoggedIn   = "user.logged_in"
	EventUserDeleted    = "user.deleted"
)

// AuditEvent is published after an account-level change succeeds.  It
// carries enough context for downstream consumers to log or alert without
// querying the primary database.  Secrets and tokens are never included.
type AuditEvent struct {
	Type      string `json:"type"`
	UserID    uint64 `json:"user_id"`
	Username  string `json:"username,omitempty"`
	ActorID   uint64 `json:"actor_id,omitempty"` // the admin who acted, when not the user
	RequestID string `json:"request_id,omitempty"`
	At        string `json:"at"` // RFC3339 UTC
}
