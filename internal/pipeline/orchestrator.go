// Package pipeline sequences one media item through transcription, analysis
// and persistence, reporting progress at fixed checkpoints.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ImperatorDravidor/inflio-sub007/internal/analysis"
	"github.com/ImperatorDravidor/inflio-sub007/internal/fallback"
	"github.com/ImperatorDravidor/inflio-sub007/internal/logger"
	"github.com/ImperatorDravidor/inflio-sub007/internal/persist"
	"github.com/ImperatorDravidor/inflio-sub007/internal/transcription"
	"github.com/ImperatorDravidor/inflio-sub007/internal/types"
)

// Checkpoint percentages. Within a run they are strictly ordered; a degraded
// transcription path skips the 60 mark and jumps from 30 to 80.
const (
	percentQueued       = 10
	percentTranscribing = 30
	percentTranscribed  = 60
	percentAnalyzed     = 80
	percentPersisting   = 90
	percentDone         = 100
)

// Tracker is the progress store surface the orchestrator writes through.
type Tracker interface {
	Create(ctx context.Context, run *types.PipelineRun) error
	Update(ctx context.Context, runID string, stage types.Stage, percent int) error
	Fail(ctx context.Context, runID, reason string) error
	Get(ctx context.Context, runID string) (*types.PipelineRun, error)
}

// Orchestrator owns each run record for the duration of its execution. Runs
// for different media items proceed concurrently as independent tasks.
type Orchestrator struct {
	transcriber transcription.Service
	analyzer    analysis.Service
	tracker     Tracker
	gateway     persist.Gateway
	runTimeout  time.Duration
	log         *logger.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type Options struct {
	Transcriber transcription.Service
	Analyzer    analysis.Service
	Tracker     Tracker
	Gateway     persist.Gateway
	RunTimeout  time.Duration
}

func New(opts Options) *Orchestrator {
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 10 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		transcriber: opts.Transcriber,
		analyzer:    opts.Analyzer,
		tracker:     opts.Tracker,
		gateway:     opts.Gateway,
		runTimeout:  opts.RunTimeout,
		log:         logger.New(),
		baseCtx:     ctx,
		cancel:      cancel,
	}
}

// Start creates the run record and kicks off execution in its own task.
// It returns as soon as the run is durably queued.
func (o *Orchestrator) Start(projectID, mediaReference, languageHint string) (string, error) {
	if projectID == "" || mediaReference == "" {
		return "", fmt.Errorf("projectID and mediaReference are required")
	}
	run := &types.PipelineRun{
		ID:             uuid.New().String(),
		ProjectID:      projectID,
		MediaReference: mediaReference,
		LanguageHint:   languageHint,
	}
	if err := o.tracker.Create(o.baseCtx, run); err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(o.baseCtx, o.runTimeout)
		defer cancel()
		o.execute(ctx, run)
	}()
	return run.ID, nil
}

// Progress returns the run's current {stage, percent} and, for failed runs,
// the recorded reason.
func (o *Orchestrator) Progress(ctx context.Context, runID string) (*types.PipelineRun, error) {
	return o.tracker.Get(ctx, runID)
}

// Shutdown cancels in-flight runs and waits for their terminal writes.
func (o *Orchestrator) Shutdown() {
	o.cancel()
	o.wg.Wait()
}

func (o *Orchestrator) execute(ctx context.Context, run *types.PipelineRun) {
	log := o.log.WithRun(run.ID, run.ProjectID)
	log.WithField("media_reference", run.MediaReference).Info("run started")

	if !o.checkpoint(ctx, log, run.ID, types.StageTranscribing, percentQueued) {
		return
	}

	transcript, degraded := o.transcribe(ctx, log, run)
	if ctx.Err() != nil {
		o.fail(log, run.ID, fmt.Sprintf("run cancelled during transcription: %v", ctx.Err()))
		return
	}
	if !degraded {
		// Real transcript in hand, headroom left for analysis.
		if !o.checkpoint(ctx, log, run.ID, types.StageAnalyzing, percentTranscribed) {
			return
		}
	} else {
		// Transcription never produced real output; progress stays at the
		// in-progress mark before moving on with the fallback transcript.
		if !o.checkpoint(ctx, log, run.ID, types.StageTranscribing, percentTranscribing) {
			return
		}
	}

	contentAnalysis := o.analyze(ctx, log, run, transcript)
	if ctx.Err() != nil {
		o.fail(log, run.ID, fmt.Sprintf("run cancelled during analysis: %v", ctx.Err()))
		return
	}
	if !o.checkpoint(ctx, log, run.ID, types.StageAnalyzing, percentAnalyzed) {
		return
	}

	if !o.checkpoint(ctx, log, run.ID, types.StagePersisting, percentPersisting) {
		return
	}
	if err := o.persistResult(ctx, log, run, transcript, contentAnalysis); err != nil {
		o.fail(log, run.ID, fmt.Sprintf("persistence failed: %v", err))
		return
	}

	if !o.checkpoint(ctx, log, run.ID, types.StageCompleted, percentDone) {
		return
	}
	log.WithField("degraded", transcript.IsFallback || contentAnalysis.IsFallback).Info("run completed")
}

// transcribe returns the real transcript, or the fallback one with degraded
// set. Transcription failure alone never fails the run.
func (o *Orchestrator) transcribe(ctx context.Context, log *logrus.Entry, run *types.PipelineRun) (types.Transcript, bool) {
	transcript, err := o.transcriber.Transcribe(ctx, run.MediaReference, run.LanguageHint)
	if err != nil {
		log.WithField("error", err.Error()).Warn("transcription failed, substituting fallback transcript")
		return fallback.Transcript(run.MediaReference, run.LanguageHint), true
	}
	return transcript, false
}

// analyze skips the remote adapter entirely for fallback transcripts: a real
// analysis call on placeholder text would be wasted spend.
func (o *Orchestrator) analyze(ctx context.Context, log *logrus.Entry, run *types.PipelineRun, transcript types.Transcript) types.ContentAnalysis {
	if transcript.IsFallback {
		log.Info("fallback transcript in hand, skipping analysis adapter")
		return fallback.Analysis()
	}

	contentAnalysis, err := o.analyzer.Analyze(ctx, transcript)
	switch {
	case err == nil:
		return contentAnalysis
	case errors.Is(err, analysis.ErrSkipped):
		log.Info("empty transcript, analysis skipped")
		return fallback.Analysis()
	default:
		log.WithField("error", err.Error()).Warn("analysis failed, substituting fallback analysis")
		return fallback.Analysis()
	}
}

// persistResult tries the full payload first, then once more with the
// transcript alone before giving up.
func (o *Orchestrator) persistResult(ctx context.Context, log *logrus.Entry, run *types.PipelineRun, transcript types.Transcript, contentAnalysis types.ContentAnalysis) error {
	fullErr := o.gateway.SaveFull(ctx, run.ProjectID, transcript, contentAnalysis)
	if fullErr == nil {
		return nil
	}
	log.WithField("error", fullErr.Error()).Warn("full payload save failed, retrying transcript-only")

	if partialErr := o.gateway.SaveTranscriptOnly(ctx, run.ProjectID, transcript); partialErr != nil {
		return fmt.Errorf("full save: %v; transcript-only save: %w", fullErr, partialErr)
	}
	log.Info("persisted transcript-only payload")
	return nil
}

// checkpoint applies a progress update and reports whether the run may
// proceed. Updates are awaited so the user-facing progress bar never runs
// ahead of reality.
func (o *Orchestrator) checkpoint(ctx context.Context, log *logrus.Entry, runID string, stage types.Stage, percent int) bool {
	if err := o.tracker.Update(ctx, runID, stage, percent); err != nil {
		o.fail(log, runID, fmt.Sprintf("progress update to %s/%d failed: %v", stage, percent, err))
		return false
	}
	log.WithFields(logrus.Fields{"stage": stage, "percent": percent}).Debug("checkpoint")
	return true
}

// fail records the terminal state with a context detached from the run's,
// which may already be cancelled.
func (o *Orchestrator) fail(log *logrus.Entry, runID, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.tracker.Fail(ctx, runID, reason); err != nil {
		log.WithField("error", err.Error()).Error("failed to record terminal run state")
	}
	log.WithField("reason", reason).Error("run failed")
}
