package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RiSEblackbird/mc-bot-egent-practice-1-sub000/pkg/config"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	tel := Setup(context.Background(), config.OtelConfig{})
	require.NotNil(t, tel)
	assert.NotNil(t, tel.Tracer)
	assert.NotNil(t, tel.CommandsHandled)
	assert.NotNil(t, tel.EventsSent)
	assert.NotNil(t, tel.SnapshotDuration)
	assert.NotNil(t, tel.SnapshotErrors)

	// Recording against the no-op instruments must not panic.
	tel.CommandsHandled.Add(context.Background(), 1)
	tel.SnapshotDuration.Record(context.Background(), 0.1)
	tel.Shutdown(context.Background())
}

func TestNoopSpansAreUsable(t *testing.T) {
	tel := Noop()
	ctx, span := tel.Tracer.Start(context.Background(), "command.chat")
	assert.NotNil(t, ctx)
	span.End()
}
