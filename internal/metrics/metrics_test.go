package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestCounters(t *testing.T) {
	ReportsCreatedTotal.WithLabelValues("urgent").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(ReportsCreatedTotal.WithLabelValues("urgent")))

	AnalysisTotal.WithLabelValues("mock", "ok").Add(2)
	assert.Equal(t, 2.0, testutil.ToFloat64(AnalysisTotal.WithLabelValues("mock", "ok")))
}

func TestWebsocketClientsGauge(t *testing.T) {
	SetClientCounter(func() int { return 4 })
	defer SetClientCounter(func() int { return 0 })
	assert.Equal(t, 4.0, testutil.ToFloat64(WebsocketClients))
}
