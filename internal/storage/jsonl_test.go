package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jitscope/internal/model"
)

func TestJsonlStorageAppendsAndReadsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.jsonl")
	sink := NewJsonlStorage(path)
	ctx := context.Background()

	first := model.ResultRecord{
		CandidateID:  "0xabc",
		Kind:         model.ResultKindFast,
		Success:      true,
		Profitable:   true,
		TickLower:    -600,
		TickUpper:    600,
		FeesEarned:   "115792089237316195423570985008687907853269984665640564039457584007913129639935",
		NetProfit:    "-9000000000000000",
		NetProfitUSD: "42.5",
	}
	second := first
	second.Kind = model.ResultKindPreflight
	second.Lender = "balancer"

	require.NoError(t, sink.PutResults(ctx, []model.ResultRecord{first}))
	require.NoError(t, sink.PutResults(ctx, []model.ResultRecord{second}))
	require.NoError(t, sink.PutResults(ctx, nil))

	got, err := ReadResults(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first, got[0])
	assert.Equal(t, second, got[1])
}

type failingSink struct{ calls int }

func (f *failingSink) PutResults(context.Context, []model.ResultRecord) error {
	f.calls++
	return errors.New("boom")
}

func TestMultiSinkStopsAtFirstError(t *testing.T) {
	a, b := &failingSink{}, &failingSink{}
	err := MultiSink{a, b}.PutResults(context.Background(), []model.ResultRecord{{CandidateID: "x"}})
	assert.Error(t, err)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 0, b.calls)
}
