package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smarthire/internal/models"
)

func TestMemoryQueueDeliversPublishedMessages(t *testing.T) {
	q := NewMemory(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Publish(ctx, []byte("one")))
	require.NoError(t, q.Publish(ctx, []byte("two")))

	received := make(chan []byte, 4)
	go q.Consume(ctx, func(ctx context.Context, body []byte) error {
		received <- body
		return nil
	})

	assert.Equal(t, []byte("one"), <-received)
	assert.Equal(t, []byte("two"), <-received)
}

func TestMemoryQueueSwallowsHandlerErrors(t *testing.T) {
	q := NewMemory(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Publish(ctx, []byte("bad")))
	require.NoError(t, q.Publish(ctx, []byte("good")))

	received := make(chan []byte, 4)
	go q.Consume(ctx, func(ctx context.Context, body []byte) error {
		received <- body
		if string(body) == "bad" {
			return fmt.Errorf("handler failure")
		}
		return nil
	})

	// The failing message does not stop consumption.
	assert.Equal(t, []byte("bad"), <-received)
	assert.Equal(t, []byte("good"), <-received)
}

func TestMemoryQueueRejectsWhenFull(t *testing.T) {
	q := NewMemory(1)
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, []byte("one")))
	assert.Error(t, q.Publish(ctx, []byte("two")))
}

func TestMemoryQueueConsumeStopsOnCancel(t *testing.T) {
	q := NewMemory(1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- q.Consume(ctx, func(ctx context.Context, body []byte) error { return nil })
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("consume did not stop after cancel")
	}
}

func TestStageMessageRoundTrip(t *testing.T) {
	msg := StageMessage{
		JobID:      uuid.New(),
		ResponseID: uuid.New(),
		Stage:      models.StageTranscribe,
	}

	body, err := msg.Marshal()
	require.NoError(t, err)

	decoded, err := UnmarshalStageMessage(body)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)

	_, err = UnmarshalStageMessage([]byte("{not json"))
	assert.Error(t, err)
}
