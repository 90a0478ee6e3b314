package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestSystemCollectorCalibratesPendingGauge(t *testing.T) {
	ApprovalPendingGauge.Set(42)

	c := NewSystemCollector(nil, func(context.Context) (int64, error) { return 3, nil }, nil)
	c.CollectOnce(context.Background())
	require.Equal(t, float64(3), gaugeValue(t, ApprovalPendingGauge))

	failing := NewSystemCollector(nil, func(context.Context) (int64, error) { return 0, errors.New("db down") }, nil)
	failing.CollectOnce(context.Background())
	require.Equal(t, float64(3), gaugeValue(t, ApprovalPendingGauge))
}

func TestSystemCollectorStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c := NewSystemCollector(nil, nil, nil)
	go func() {
		c.Run(ctx)
		close(done)
	}()
	cancel()
	<-done
}
