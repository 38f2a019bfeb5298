package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"jitscope/internal/model"
)

func TestRecorderOutcomes(t *testing.T) {
	r := NewRecorder()

	r.ObserveFast(model.FastResult{Success: true, Profitable: true})
	r.ObserveFast(model.FastResult{Success: true})
	r.ObserveFast(model.FastResult{})
	r.ObserveFast(model.FastResult{})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.estimates.WithLabelValues(OutcomeProfitable)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.estimates.WithLabelValues(OutcomeUnprofitable)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.estimates.WithLabelValues(OutcomeFailed)))

	r.ObservePreflight(model.PreflightResult{Success: true, Profitable: true, NetProfitUSD: decimal.NewFromInt(42)})
	r.ObservePreflight(model.PreflightResult{RevertReason: "pool validation failed"})
	assert.Equal(t, 1.0, testutil.ToFloat64(r.preflights.WithLabelValues(OutcomeProfitable)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.preflights.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 1, testutil.CollectAndCount(r.netProfit))
}
