// Package queue publishes pass change events to RabbitMQ for downstream
// consumers (audit trails, analytics). Delivery is best effort: the
// lifecycle engine never waits on the broker.
package queue

import "time"

const passesQueueName = "passes.updated"

// PassesUpdatedEvent signals that some pass in a school changed. It carries
// no pass data; consumers fetch authoritative state themselves.
type PassesUpdatedEvent struct {
	SchoolID   string    `json:"school_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
