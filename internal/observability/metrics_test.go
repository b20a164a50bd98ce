package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	var metric dto.Metric
	require.NoError(t, counter.Write(&metric))
	return metric.GetCounter().GetValue()
}

func TestDomainCountersAreRegistered(t *testing.T) {
	finalized := EvaluationsFinalized().WithLabelValues("good")
	before := counterValue(t, finalized)
	finalized.Inc()
	require.Equal(t, before+1, counterValue(t, finalized))

	RubricOperations().WithLabelValues("duplicate").Inc()
	require.GreaterOrEqual(t, counterValue(t, RubricOperations().WithLabelValues("duplicate")), float64(1))

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, family := range families {
		names[family.GetName()] = true
	}
	require.True(t, names["evaluations_finalized_total"])
	require.True(t, names["rubric_operations_total"])
}
