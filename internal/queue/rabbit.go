package queue

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Rabbit is the RabbitMQ-backed queue. Messages are durable and redelivered
// on nack; the stage-job claim in the orchestrator makes redelivery harmless.
type Rabbit struct {
	conn      *amqp.Connection
	queueName string
	logger    *zap.Logger
}

func NewRabbit(url, queueName string, logger *zap.Logger) (*Rabbit, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	return &Rabbit{
		conn:      conn,
		queueName: queueName,
		logger:    logger,
	}, nil
}

func (r *Rabbit) Publish(ctx context.Context, body []byte) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(r.queueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	err = ch.PublishWithContext(ctx, "", q.Name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	return nil
}

func (r *Rabbit) Consume(ctx context.Context, handle func(ctx context.Context, body []byte) error) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(r.queueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	msgs, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	r.logger.Info("Connected to RabbitMQ", zap.String("queue", q.Name))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("rabbitmq consumer channel closed")
			}
			if err := handle(ctx, msg.Body); err != nil {
				r.logger.Error("Failed to handle message", zap.Error(err))
				_ = msg.Nack(false, true)
			} else {
				_ = msg.Ack(false)
			}
		}
	}
}

func (r *Rabbit) Close() error {
	return r.conn.Close()
}
