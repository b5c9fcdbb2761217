package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/allaspectsdev/storepulse/internal/tracing"
)

// Stage names, also used as span names, metric labels and timing keys.
const (
	StageDownload      = "download"
	StageExtraction    = "extraction"
	StageNormalization = "normalization"
	StageAggregation   = "aggregation"
)

// stage is one step of a run. kind classifies errors that carry no sentinel.
type stage struct {
	name string
	kind ErrorKind
	run  func(ctx context.Context) error
}

// recoverStage runs fn inside a deferred recover so that a panicking stage
// fails the run instead of the process.
func recoverStage(name string, fn func() error) (retErr error) {
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("%w: %s: %v", errStagePanicked, name, r)
		}
	}()
	return fn()
}

// runStages executes stages in order, each in its own span. The first
// failure stops the run and is returned with its classification. timings
// receives the duration of every stage that ran.
func (r *Runner) runStages(ctx context.Context, stages []stage, timings map[string]time.Duration) (ErrorKind, error) {
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return KindCanceled, err
		}

		stageCtx, span := tracing.StartStageSpan(ctx, s.name)
		start := time.Now()
		err := recoverStage(s.name, func() error { return s.run(stageCtx) })
		elapsed := time.Since(start)

		timings[s.name] = elapsed
		if r.collector != nil {
			r.collector.RecordStage(s.name, elapsed)
		}

		if err != nil {
			tracing.RecordError(stageCtx, err)
			span.End()
			return Classify(err, s.kind), fmt.Errorf("pipeline: %s: %w", s.name, err)
		}
		span.End()

		log.Info().Str("stage", s.name).Dur("elapsed", elapsed).Msg("pipeline: stage finished")
	}
	return KindNone, nil
}
