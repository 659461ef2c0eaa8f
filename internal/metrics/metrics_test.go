package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisterIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestSearchCounterLabels(t *testing.T) {
	before := testutil.ToFloat64(SearchRequestsTotal.WithLabelValues("fallback"))
	SearchRequestsTotal.WithLabelValues("fallback").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(SearchRequestsTotal.WithLabelValues("fallback")))
}
