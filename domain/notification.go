package domain

import "time"

// Notification kinds.
const (
	NotificationAssignment = "ASSIGNMENT"
	NotificationComment    = "COMMENT"
	NotificationInvite     = "INVITE"
)

// Notification is a persisted in-app notice. Emission is fire-and-forget from
// the board's perspective; the emitter owns persistence and email handoff.
type Notification struct {
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"`
	Sender    string    `json:"sender"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	RelatedID string    `json:"relatedId,omitempty"`
	ProjectID string    `json:"projectId,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// EmailMessage is one job on the outbound email queue. Delivery is handled by
// a separate consumer; this service only enqueues.
type EmailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
