package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"jitscope/internal/model"
	"jitscope/internal/storage"
)

const scanInput = `{"id":"a","params":{"pool":"0xC2e9F25Be6257c210d7Adf0D4Cd6E3E881ba25f8","amount_in":1000,"zero_for_one":true}}
{"id":"b","params":{"pool":"0xC2e9F25Be6257c210d7Adf0D4Cd6E3E881ba25f8","amount_in":2000,"zero_for_one":false}}
not json

{"params":{"pool":"0xC2e9F25Be6257c210d7Adf0D4Cd6E3E881ba25f8","amount_in":3000,"zero_for_one":true}}
`

type memSink struct {
	records []model.ResultRecord
}

func (m *memSink) PutResults(_ context.Context, records []model.ResultRecord) error {
	m.records = append(m.records, records...)
	return nil
}

func newTestScan(t *testing.T, evaluate func(context.Context, []numberedCandidate) []model.ResultRecord) (*scanRun, *memSink, *storage.CheckpointStore) {
	t.Helper()
	sink := &memSink{}
	progress := storage.NewCheckpointStore(filepath.Join(t.TempDir(), "checkpoint.json"))
	return &scanRun{
		input:    "candidates.jsonl",
		evaluate: evaluate,
		sink:     sink,
		progress: progress,
		logger:   zap.NewNop(),
	}, sink, progress
}

func echoRecords(_ context.Context, chunk []numberedCandidate) []model.ResultRecord {
	records := make([]model.ResultRecord, 0, len(chunk))
	for _, nc := range chunk {
		records = append(records, model.ResultRecord{CandidateID: nc.candidate.ID, Kind: model.ResultKindFast})
	}
	return records
}

func TestScanRunWritesAndCheckpoints(t *testing.T) {
	s, sink, progress := newTestScan(t, echoRecords)

	err := s.consume(context.Background(), strings.NewReader(scanInput), 0)
	require.NoError(t, err)

	ids := make([]string, 0, len(sink.records))
	for _, r := range sink.records {
		ids = append(ids, r.CandidateID)
	}
	assert.Equal(t, []string{"a", "b", "line-5"}, ids)
	assert.Equal(t, 4, s.stats.total)
	assert.Equal(t, 1, s.stats.malformed)

	line, ok, err := progress.LoadState(context.Background(), "candidates.jsonl")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(5), line)
}

func TestScanRunResumeSkipsProcessedLines(t *testing.T) {
	var seen []string
	s, _, _ := newTestScan(t, func(ctx context.Context, chunk []numberedCandidate) []model.ResultRecord {
		for _, nc := range chunk {
			seen = append(seen, nc.candidate.ID)
		}
		return echoRecords(ctx, chunk)
	})

	require.NoError(t, s.consume(context.Background(), strings.NewReader(scanInput), 2))
	assert.Equal(t, []string{"line-5"}, seen)
}

func TestScanRunInterruptedChunkIsNotCheckpointed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, sink, progress := newTestScan(t, func(ctx context.Context, chunk []numberedCandidate) []model.ResultRecord {
		cancel()
		return echoRecords(ctx, chunk)
	})

	err := s.consume(ctx, strings.NewReader(scanInput), 0)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.records)

	_, ok, err := progress.LoadState(context.Background(), "candidates.jsonl")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScanRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	s, sink, _ := newTestScan(t, func(ctx context.Context, chunk []numberedCandidate) []model.ResultRecord {
		calls++
		return echoRecords(ctx, chunk)
	})

	err := s.consume(ctx, strings.NewReader(scanInput), 0)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
	assert.Empty(t, sink.records)
}
