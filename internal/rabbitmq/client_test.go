package rabbitmq

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoArmGo/PhotoSearch/internal/logger"
	"github.com/GoArmGo/PhotoSearch/internal/messaging/payloads"
)

type ackRecorder struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *ackRecorder) Ack(tag uint64, multiple bool) error {
	a.acked++
	return nil
}

func (a *ackRecorder) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

const eventBody = `{"share_id":"6f1c2b9e-8d3a-4c7e-9f10-2a3b4c5d6e7f","items":[{"photo_id":"42","farm":1,"server":"s","secret":"x"}],"shared_at":"2026-01-02T03:04:05Z"}`

func TestDispatchAcksProcessedEvent(t *testing.T) {
	rec := &ackRecorder{}
	var got payloads.ShareEvent

	dispatch(context.Background(), logger.Discard(), amqp.Delivery{Acknowledger: rec, Body: []byte(eventBody)},
		func(ctx context.Context, ev payloads.ShareEvent) error {
			got = ev
			return nil
		})

	assert.Equal(t, 1, rec.acked)
	assert.Zero(t, rec.nacked)
	assert.Equal(t, "6f1c2b9e-8d3a-4c7e-9f10-2a3b4c5d6e7f", got.ShareID.String())
	require.Len(t, got.Items, 1)
	assert.Equal(t, "42", got.Items[0].PhotoID)
}

func TestDispatchDropsMalformedEvent(t *testing.T) {
	rec := &ackRecorder{}
	called := false

	dispatch(context.Background(), logger.Discard(), amqp.Delivery{Acknowledger: rec, Body: []byte("{not json")},
		func(ctx context.Context, ev payloads.ShareEvent) error {
			called = true
			return nil
		})

	assert.False(t, called)
	assert.Equal(t, 1, rec.nacked)
	assert.False(t, rec.requeue)
}

func TestDispatchRequeuesOnHandlerError(t *testing.T) {
	rec := &ackRecorder{}

	dispatch(context.Background(), logger.Discard(), amqp.Delivery{Acknowledger: rec, Body: []byte(eventBody)},
		func(ctx context.Context, ev payloads.ShareEvent) error {
			return errors.New("storage down")
		})

	assert.Zero(t, rec.acked)
	assert.Equal(t, 1, rec.nacked)
	assert.True(t, rec.requeue)
}
