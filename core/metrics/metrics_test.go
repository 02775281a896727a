package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnslin/sessionretry/core/authretry"
)

func TestPrometheusCountsInvokerOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPrometheus(reg, "test")
	require.NoError(t, err)

	inv := authretry.NewInvoker(authretry.Sync(func(context.Context) error { return nil }), authretry.WithMetrics(m))
	ctx := authretry.WithOperation(context.Background(), "posts")

	calls := 0
	_, err = authretry.Do(ctx, inv, func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, authretry.ErrSessionExpired
		}
		return 1, nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshTotal.WithLabelValues("posts", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("posts", "none", "true")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("posts", "none", "false")))
}

func TestPrometheusDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheus(reg, "dup")
	require.NoError(t, err)
	_, err = NewPrometheus(reg, "dup")
	assert.Error(t, err)
}
