package aio_test

import (
	"context"
	"testing"
	"time"

	"github.com/brickingsoft/uring/pkg/aio"
	"github.com/brickingsoft/uring/pkg/engine/fake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReactor_Metrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	engine := fake.New()
	r := newReactor(t, engine, aio.WithMetrics(registry, "test"))

	ev, err := r.Prepare(context.Background(), aio.Nop())
	require.NoError(t, err)
	orphan, err := r.Prepare(context.Background(), aio.Nop())
	require.NoError(t, err)
	require.True(t, orphan.Cancel())

	values := gather(t, registry)
	assert.Equal(t, float64(2), values["test_reactor_submitted_total"])
	assert.Equal(t, float64(1), values["test_reactor_orphaned_total"])
	assert.Equal(t, float64(2), values["test_reactor_inflight"])
	assert.Equal(t, float64(1), values["test_reactor_orphans"])

	engine.CompleteAll(nil)
	_, err = ev.Await(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return gather(t, registry)["test_reactor_orphans_released_total"] == 1
	}, time.Second, time.Millisecond)
	count, err := testutil.GatherAndCount(registry, "test_reactor_completed_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// a second reactor on the same registry collides
	_, err = aio.New(fake.New(), aio.WithMetrics(registry, "test"))
	assert.Error(t, err)
}

func gather(t *testing.T, registry *prometheus.Registry) map[string]float64 {
	families, err := registry.Gather()
	require.NoError(t, err)
	values := make(map[string]float64)
	for _, family := range families {
		metric := family.GetMetric()[0]
		if c := metric.GetCounter(); c != nil {
			values[family.GetName()] = c.GetValue()
		}
		if g := metric.GetGauge(); g != nil {
			values[family.GetName()] = g.GetValue()
		}
	}
	return values
}
