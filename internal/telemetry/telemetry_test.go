package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), "", "pulse", "test", false)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestMeter_ReturnsUsableMeter(t *testing.T) {
	m := Meter("pulse/test")
	counter, err := m.Int64Counter("pulse.test.counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)
}
