package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeJob(t *testing.T, job Job) string {
	t.Helper()
	data, err := json.Marshal(job)
	require.NoError(t, err)
	return string(data)
}

func TestPoolHandle(t *testing.T) {
	ctx := context.Background()
	calls := 0
	p := NewPool(nil)
	p.Register("ok", func(context.Context, json.RawMessage) error { calls++; return nil })
	p.Register("falla", func(context.Context, json.RawMessage) error { calls++; return errors.New("boom") })

	t.Run("success acks the job", func(t *testing.T) {
		out := p.handle(ctx, QueueVentas, encodeJob(t, Job{Type: "ok", Payload: json.RawMessage(`{}`)}))
		assert.Nil(t, out.requeue)
		assert.Nil(t, out.dlq)
	})

	t.Run("failure is retried with attempt count", func(t *testing.T) {
		out := p.handle(ctx, QueueVentas, encodeJob(t, Job{Type: "falla", Payload: json.RawMessage(`{}`)}))
		require.NotNil(t, out.requeue)
		var job Job
		require.NoError(t, json.Unmarshal(out.requeue, &job))
		assert.Equal(t, 1, job.Attempts)
	})

	t.Run("last attempt goes to the DLQ", func(t *testing.T) {
		out := p.handle(ctx, QueueVentas, encodeJob(t, Job{Type: "falla", Payload: json.RawMessage(`{}`), Attempts: MaxAttempts - 1}))
		assert.Nil(t, out.requeue)
		require.NotNil(t, out.dlq)
		assert.Equal(t, "boom", out.dlq.Reason)
		assert.Equal(t, MaxAttempts, out.dlq.Attempts)
		assert.Equal(t, QueueVentas, out.dlq.OriginalQueue)
	})

	t.Run("unknown type and broken envelope go to the DLQ", func(t *testing.T) {
		out := p.handle(ctx, QueueVentas, encodeJob(t, Job{Type: "desconocido"}))
		require.NotNil(t, out.dlq)
		out = p.handle(ctx, QueueVentas, "{not json")
		require.NotNil(t, out.dlq)
	})

	assert.Equal(t, 3, calls)
}
