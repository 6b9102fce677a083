package adapter

import "context"

// OutreachMessage is the content handed to a delivery channel.
type OutreachMessage struct {
	LeadProfileRef string
	Content        string
}

// DeliveryChannel is the boundary to whatever actually performs a send
// (browser automation, a messenger API, ...). Implementations must honor the
// context deadline; the queue worker treats deadline expiry as a failure.
type DeliveryChannel interface {
	Send(ctx context.Context, msg OutreachMessage) error
}

// StoredMessage is what the message store returns for a queued message id.
type StoredMessage struct {
	ID      string
	Content string
	LeadRef string
}

// MessageStore is the collaborator owning message content and status,
// external to this core.
type MessageStore interface {
	GetMessage(ctx context.Context, id string) (*StoredMessage, error)
	UpdateMessageStatus(ctx context.Context, id, status string) error
}
