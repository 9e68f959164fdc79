package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const publishTimeout = 5 * time.Second

// Publisher sends pass change events to the passes.updated queue. It
// implements the notification Publisher contract; failures are logged and
// dropped so the broker can never stall a pass mutation.
type Publisher struct {
	url string
}

// NewPublisher creates a publisher for the given AMQP URL.
func NewPublisher(url string) *Publisher {
	return &Publisher{url: url}
}

// PassesUpdated publishes the event asynchronously.
func (p *Publisher) PassesUpdated(schoolID string) {
	event := PassesUpdatedEvent{SchoolID: schoolID, OccurredAt: time.Now().UTC()}
	go func() {
		if err := p.publish(event); err != nil {
			log.Error().Err(err).Str("school_id", schoolID).Msg("Failed to publish passes.updated event")
		}
	}()
}

func (p *Publisher) publish(event PassesUpdatedEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	// Idempotent declare; durable so events survive broker restarts.
	if _, err := ch.QueueDeclare(passesQueueName, true, false, false, false, nil); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	return ch.PublishWithContext(ctx,
		"",              // default exchange
		passesQueueName, // routing key = queue name
		false,           // mandatory
		false,           // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
}
