package container_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-ioc/framework/container"
)

func TestMetrics_RecordsResolutions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := container.NewMetrics(reg, "test")
	c := container.New(container.WithMetrics(m))
	var counter atomic.Int32
	require.NoError(t, graph(c, &counter))

	_, err := c.GetInstance(context.Background(), serviceD)
	require.NoError(t, err)
	_, err = c.GetInstance(context.Background(), serviceD)
	require.NoError(t, err)
	_, err = c.GetInstance(context.Background(), container.Type("Unknown"))
	require.Error(t, err)
	_, err = c.GetAllInstances(context.Background(), loggerD)
	require.NoError(t, err)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ResolutionsTotal.WithLabelValues("instance", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ResolutionsTotal.WithLabelValues("instance", "missing")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ResolutionsTotal.WithLabelValues("collection", "ok")))

	// Service and Repository are transient, Logger a singleton built once
	assert.Equal(t, float64(4), testutil.ToFloat64(m.ConstructionsTotal.WithLabelValues("transient")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ConstructionsTotal.WithLabelValues("singleton")))
	assert.Greater(t, testutil.ToFloat64(m.PlansBuilt), float64(0))
}

func TestMetrics_RecordsVerification(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := container.NewMetrics(reg, "test")

	ok := container.New(container.WithMetrics(m))
	require.NoError(t, ok.Verify(context.Background()))

	broken := container.New(container.WithMetrics(m))
	require.NoError(t, broken.Register(serviceD, serviceImpl()))
	require.Error(t, broken.Verify(context.Background()))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.VerificationsTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.VerificationsTotal.WithLabelValues("missing")))

	count, err := testutil.GatherAndCount(reg, "test_container_verification_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	c := container.New(container.WithMetrics(nil))
	require.NoError(t, c.RegisterInstance(loggerD, &logger{}))

	_, err := c.GetInstance(context.Background(), loggerD)
	assert.NoError(t, err)
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fmt.Errorf("wrapped: %w", container.ErrCircularDependency), "circular"},
		{container.ErrNoActiveScope, "no_scope"},
		{context.DeadlineExceeded, "canceled"},
		{errBoom, "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, container.Outcome(tt.err))
	}
}
