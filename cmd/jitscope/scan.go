package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jitscope/internal/metrics"
	"jitscope/internal/model"
	"jitscope/internal/storage"
	"jitscope/internal/storage/postgres"
	"jitscope/internal/storage/redisstream"
)

const scanChunkSize = 100

type numberedCandidate struct {
	line      int64
	candidate model.Candidate
}

// progressStore records the last processed input line per input file.
type progressStore interface {
	LoadState(ctx context.Context, name string) (int64, bool, error)
	SaveState(ctx context.Context, name string, line int64) error
}

type scanStats struct {
	total, malformed, estimated, profitable, preflighted, confirmed int
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input candidates file is required")
	}
	resume, _ := cmd.Flags().GetBool("resume")
	checkpointPath, _ := cmd.Flags().GetString("checkpoint")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := newEngine(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer e.Close()

	sinks := storage.MultiSink{storage.NewJsonlStorage(cfg.Out)}
	var progress progressStore = storage.NewCheckpointStore(checkpointPath)
	if cfg.PGDSN != "" {
		pgStore, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pgStore.Close()
		if err := pgStore.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, pgStore)
		progress = pgStore
	}

	if cfg.RedisAddr != "" {
		rdb, err := redisstream.Dial(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer rdb.Close()
		sinks = append(sinks, redisstream.NewPublisher(rdb, cfg.RedisStream, 10_000))
	}

	var skipThrough int64
	if resume {
		last, ok, err := progress.LoadState(ctx, cfg.In)
		if err != nil {
			return fmt.Errorf("load scan state: %w", err)
		}
		if ok {
			skipThrough = last
		}
	}

	recorder := metrics.NewRecorder()
	metrics.Serve(ctx, cfg.MetricsAddr, recorder.Registry(), logger.Named("metrics"))

	inputFile, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inputFile.Close()

	logger.Info("scan start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.Bool("postgres", cfg.PGDSN != ""),
		zap.Bool("redis", cfg.RedisAddr != ""),
		zap.Int64("resume_after_line", skipThrough),
		zap.Int("concurrency", cfg.Concurrency),
		zap.Duration("timeout", cfg.Timeout),
		zap.String("lender_mode", cfg.LenderMode),
	)

	s := &scanRun{
		input:    cfg.In,
		sink:     sinks,
		progress: progress,
		logger:   logger,
	}
	s.evaluate = func(ctx context.Context, chunk []numberedCandidate) []model.ResultRecord {
		return evaluateChunk(ctx, e, recorder, chunk, &s.stats, logger)
	}
	err = s.consume(ctx, inputFile, skipThrough)

	logger.Info("scan complete",
		zap.Int("total", s.stats.total),
		zap.Int("malformed", s.stats.malformed),
		zap.Int("estimated", s.stats.estimated),
		zap.Int("fast_profitable", s.stats.profitable),
		zap.Int("preflighted", s.stats.preflighted),
		zap.Int("preflight_profitable", s.stats.confirmed),
	)
	return err
}

// scanRun feeds candidate lines through evaluate in chunks. A chunk is written and
// checkpointed only when its evaluation finished under a live context.
type scanRun struct {
	input    string
	evaluate func(ctx context.Context, chunk []numberedCandidate) []model.ResultRecord
	sink     storage.ResultSink
	progress progressStore
	logger   *zap.Logger
	stats    scanStats
}

func (s *scanRun) consume(ctx context.Context, r io.Reader, skipThrough int64) error {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var (
		lineNo  int64
		pending []numberedCandidate
	)
	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		lineNo++
		if lineNo <= skipThrough {
			continue
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		s.stats.total++

		var candidate model.Candidate
		if err := json.Unmarshal(line, &candidate); err != nil {
			s.stats.malformed++
			s.logger.Warn("skip malformed candidate", zap.Int64("line", lineNo), zap.Error(err))
			continue
		}
		if candidate.ID == "" {
			candidate.ID = fmt.Sprintf("line-%d", lineNo)
		}
		pending = append(pending, numberedCandidate{line: lineNo, candidate: candidate})
		if len(pending) >= scanChunkSize {
			if err := s.flush(ctx, pending); err != nil {
				return err
			}
			pending = pending[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}
	if ctx.Err() != nil {
		s.logger.Warn("scan interrupted", zap.Int("unprocessed", len(pending)))
		return ctx.Err()
	}
	return s.flush(ctx, pending)
}

func (s *scanRun) flush(ctx context.Context, chunk []numberedCandidate) error {
	if len(chunk) == 0 {
		return nil
	}
	records := s.evaluate(ctx, chunk)
	if ctx.Err() != nil {
		s.logger.Warn("chunk interrupted, not recorded",
			zap.Int64("first_line", chunk[0].line),
			zap.Int64("last_line", chunk[len(chunk)-1].line),
		)
		return ctx.Err()
	}
	if err := s.sink.PutResults(ctx, records); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	if err := s.progress.SaveState(ctx, s.input, chunk[len(chunk)-1].line); err != nil {
		return fmt.Errorf("save scan state: %w", err)
	}
	return nil
}

func evaluateChunk(ctx context.Context, e *engine, recorder *metrics.Recorder, chunk []numberedCandidate, stats *scanStats, logger *zap.Logger) []model.ResultRecord {
	candidates := make([]model.Candidate, 0, len(chunk))
	for _, nc := range chunk {
		candidates = append(candidates, nc.candidate)
	}

	fastResults := e.fast.EstimateBatch(ctx, candidates)
	records := make([]model.ResultRecord, 0, len(candidates))
	for _, c := range candidates {
		res, ok := fastResults[c.ID]
		if !ok {
			continue
		}
		stats.estimated++
		recorder.ObserveFast(res)
		records = append(records, model.FastRecord(c.ID, res, nowString()))
		if !res.Profitable {
			continue
		}
		stats.profitable++

		pctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
		pre := e.preflight.Run(pctx, c.Params)
		cancel()
		stats.preflighted++
		recorder.ObservePreflight(pre)
		if pre.Profitable {
			stats.confirmed++
		}
		logger.Debug("candidate preflighted",
			zap.String("id", c.ID),
			zap.Bool("success", pre.Success),
			zap.Bool("profitable", pre.Profitable),
			zap.String("reason", pre.RevertReason),
		)
		records = append(records, model.PreflightRecord(c.ID, pre, nowString()))
	}
	return records
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
