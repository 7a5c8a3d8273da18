// Package queue carries authentication audit events over RabbitMQ: a
// fire-and-forget publisher used by the services and a background consumer
// that appends each event to the audit log.
package queue

import "time"

// EventType names what happened.
type EventType string

const (
	EventSignUp                 EventType = "auth.signup"
	EventSignIn                 EventType = "auth.signin"
	EventSignInFailed           EventType = "auth.signin_failed"
	EventSignOut                EventType = "auth.signout"
	EventTokenRefreshed         EventType = "auth.token_refreshed"
	EventSessionRevoked         EventType = "auth.session_revoked"
	EventSessionsRevokedAll     EventType = "auth.sessions_revoked_all"
	EventPasswordResetRequested EventType = "auth.password_reset_requested"
	EventPasswordResetCompleted EventType = "auth.password_reset_completed"
	EventAPIKeyCreated          EventType = "apikey.created"
	EventAPIKeyRevoked          EventType = "apikey.revoked"
	EventAPIKeyDeleted          EventType = "apikey.deleted"
	EventUserCreated            EventType = "admin.user_created"
	EventUserUpdated            EventType = "admin.user_updated"
	EventUserDeleted            EventType = "admin.user_deleted"
)

// AuthEvent is the message published for every audited action.  Detail
// holds small event-specific values such as a revoked-session count.
type AuthEvent struct {
	Type       EventType         `json:"type"`
	UserID     string            `json:"user_id,omitempty"`
	ActorID    string            `json:"actor_id,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
	Detail     map[string]string `json:"detail,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
