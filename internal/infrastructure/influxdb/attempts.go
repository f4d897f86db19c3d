package influxdb

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/mqttconnect/internal/infrastructure/mqtt"
)

// measurementConnectAttempts is the measurement written per connect call.
const measurementConnectAttempts = "connect_attempts"

// RecordAttempt queues a connect_attempts point for attempt.
//
// Tags: client_id, outcome. Fields: code, duration_ms, server_count, where
// server_count includes the primary URI. The write is non-blocking; failures
// surface through the SetOnError callback.
//
// Returns ErrNotConnected after Close.
func (c *Client) RecordAttempt(ctx context.Context, attempt mqtt.Attempt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	at := attempt.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	point := attemptPoint(attempt, at)

	// Close takes the write lock, so the writer stays open for this write.
	c.state.RLock()
	defer c.state.RUnlock()
	if !c.open {
		return ErrNotConnected
	}
	c.writer.WritePoint(point)
	return nil
}

func attemptPoint(attempt mqtt.Attempt, at time.Time) *write.Point {
	return write.NewPoint(
		measurementConnectAttempts,
		map[string]string{
			"client_id": attempt.ClientID,
			"outcome":   attempt.Outcome,
		},
		map[string]interface{}{
			"code":         int64(attempt.Code),
			"duration_ms":  attempt.Duration.Milliseconds(),
			"server_count": int64(len(attempt.ServerURIs) + 1),
		},
		at,
	)
}

// compile-time check
var _ mqtt.Recorder = (*Client)(nil)
