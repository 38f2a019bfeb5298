package storage

import (
	"context"

	"jitscope/internal/model"
)

// ResultSink persists simulation results.
type ResultSink interface {
	PutResults(ctx context.Context, results []model.ResultRecord) error
}

// MultiSink fans results out to every sink, stopping at the first error.
type MultiSink []ResultSink

func (m MultiSink) PutResults(ctx context.Context, results []model.ResultRecord) error {
	for _, sink := range m {
		if err := sink.PutResults(ctx, results); err != nil {
			return err
		}
	}
	return nil
}
