package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSampler_TickWritesABatchWithoutError(t *testing.T) {
	store := openTestStore(t)
	sampler := NewSampler(store, time.Second, zerolog.Nop())

	require.NoError(t, sampler.tick(context.Background()))
	require.NoError(t, sampler.tick(context.Background()))
}

func TestSampler_RunStopsOnContextCancel(t *testing.T) {
	store := openTestStore(t)
	sampler := NewSampler(store, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := sampler.Run(ctx)
	require.NoError(t, err)
}
