package domain

import (
	"context"
)

// EventBus decouples claim approval from the retraining pipeline.
// Supports Go channels (Community) or NATS (Pro).
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings (Community tier)
	ChannelBufferSize int

	// NATS settings (Pro tier)
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Standard topic names for the claim pipeline.
const (
	// TopicClaimDecided fires after every submission, whatever the verdict.
	TopicClaimDecided = "claim.decided"

	// TopicClaimApproved fires after any transition to approved, auto or
	// admin. The retraining worker subscribes here.
	TopicClaimApproved = "claim.approved"
)

// ClaimApprovedEvent is the payload published on TopicClaimApproved.
type ClaimApprovedEvent struct {
	ClaimID        string         `json:"claimId"`
	FarmerID       string         `json:"farmerId"`
	ApprovedAmount float64        `json:"approvedAmount"`
	Source         DecisionSource `json:"source"`
}
