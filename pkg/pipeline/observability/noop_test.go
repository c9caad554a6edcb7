package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopMetricsDoesNothing(t *testing.T) {
	m := NoopMetrics{}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordStageExecution(ctx, "a", time.Second, nil)
		m.RecordStageExecution(ctx, "a", time.Second, errors.New("x"))
		m.RecordRun(ctx, true, time.Second)
		m.RecordInterrupt(ctx, "a")
		m.RecordCheckpoint(ctx, "a", 100)
	})
}

func TestNoopSpanManagerDoesNothing(t *testing.T) {
	m := NoopSpanManager{}
	ctx := context.Background()

	newCtx, span := m.StartRunSpan(ctx, "p", "run-1")
	assert.Equal(t, ctx, newCtx)
	assert.NotNil(t, span)
	assert.False(t, span.IsRecording())

	newCtx, span = m.StartStageSpan(ctx, "a")
	assert.Equal(t, ctx, newCtx)
	assert.NotNil(t, span)

	assert.NotPanics(t, func() {
		m.EndSpanWithError(span, errors.New("x"))
		m.EndSpanWithError(nil, nil)
		m.AddSpanEvent(ctx, "event")
	})
}
