package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"smarthire/internal/models"
)

// Queue carries stage-job dispatch messages between the submitting request
// path and the worker pool. The durable state lives in the stage_jobs table;
// the queue is only a wake-up channel, so a lost message is recovered by the
// orchestrator's poller.
type Queue interface {
	Publish(ctx context.Context, body []byte) error
	Consume(ctx context.Context, handle func(ctx context.Context, body []byte) error) error
	Close() error
}

// StageMessage is the wire payload for one unit of work.
type StageMessage struct {
	JobID      uuid.UUID    `json:"job_id"`
	ResponseID uuid.UUID    `json:"response_id"`
	Stage      models.Stage `json:"stage"`
}

func (m StageMessage) Marshal() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stage message: %w", err)
	}
	return b, nil
}

func UnmarshalStageMessage(body []byte) (StageMessage, error) {
	var m StageMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return StageMessage{}, fmt.Errorf("failed to unmarshal stage message: %w", err)
	}
	return m, nil
}
