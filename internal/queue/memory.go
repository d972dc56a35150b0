package queue

import (
	"context"
	"fmt"
)

// Memory is the in-process fallback used when RabbitMQ is not configured.
type Memory struct {
	messages chan []byte
}

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 100
	}
	return &Memory{messages: make(chan []byte, capacity)}
}

func (m *Memory) Publish(ctx context.Context, body []byte) error {
	select {
	case m.messages <- body:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("memory queue is full")
	}
}

func (m *Memory) Consume(ctx context.Context, handle func(ctx context.Context, body []byte) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case body := <-m.messages:
			// Handler errors are swallowed here: the stage job stays queued
			// in the database and the poller republishes it.
			_ = handle(ctx, body)
		}
	}
}

func (m *Memory) Close() error {
	return nil
}
