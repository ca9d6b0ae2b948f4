package progress_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/ImperatorDravidor/inflio-sub007/internal/progress"
	"github.com/ImperatorDravidor/inflio-sub007/internal/types"
)

func openStore(t *testing.T) *progress.Store {
	t.Helper()
	store, err := progress.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newRun(t *testing.T, store *progress.Store) *types.PipelineRun {
	t.Helper()
	run := &types.PipelineRun{
		ID:             uuid.New().String(),
		ProjectID:      "project-1",
		MediaReference: "media/clip.mp4",
		LanguageHint:   "en",
	}
	if err := store.Create(context.Background(), run); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return run
}

func TestCreateStartsQueuedAtZero(t *testing.T) {
	store := openStore(t)
	run := newRun(t, store)

	got, err := store.Get(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Stage != types.StageQueued || got.Percent != 0 {
		t.Fatalf("expected queued/0, got %s/%d", got.Stage, got.Percent)
	}
}

func TestUpdateAppliesCheckpointsInOrder(t *testing.T) {
	store := openStore(t)
	run := newRun(t, store)
	ctx := context.Background()

	checkpoints := []struct {
		stage   types.Stage
		percent int
	}{
		{types.StageTranscribing, 10},
		{types.StageTranscribing, 30},
		{types.StageAnalyzing, 60},
		{types.StagePersisting, 80},
		{types.StagePersisting, 90},
		{types.StageCompleted, 100},
	}
	for _, cp := range checkpoints {
		if err := store.Update(ctx, run.ID, cp.stage, cp.percent); err != nil {
			t.Fatalf("Update(%s, %d) failed: %v", cp.stage, cp.percent, err)
		}
	}

	got, err := store.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Stage != types.StageCompleted || got.Percent != 100 {
		t.Fatalf("expected completed/100, got %s/%d", got.Stage, got.Percent)
	}
}

func TestUpdateIsIdempotent(t *testing.T) {
	store := openStore(t)
	run := newRun(t, store)
	ctx := context.Background()

	if err := store.Update(ctx, run.ID, types.StageTranscribing, 10); err != nil {
		t.Fatalf("first update failed: %v", err)
	}
	if err := store.Update(ctx, run.ID, types.StageTranscribing, 10); err != nil {
		t.Fatalf("re-applying the same checkpoint must be a no-op: %v", err)
	}
}

func TestUpdateRejectsDecrease(t *testing.T) {
	store := openStore(t)
	run := newRun(t, store)
	ctx := context.Background()

	if err := store.Update(ctx, run.ID, types.StageAnalyzing, 60); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	err := store.Update(ctx, run.ID, types.StageTranscribing, 10)
	if !errors.Is(err, progress.ErrPercentDecrease) {
		t.Fatalf("expected ErrPercentDecrease, got %v", err)
	}
}

func TestUpdateRejectsCompletedBelowHundred(t *testing.T) {
	store := openStore(t)
	run := newRun(t, store)

	if err := store.Update(context.Background(), run.ID, types.StageCompleted, 90); err == nil {
		t.Fatal("expected error for completed run below 100 percent")
	}
}

func TestFailFreezesPercentAndRecordsReason(t *testing.T) {
	store := openStore(t)
	run := newRun(t, store)
	ctx := context.Background()

	if err := store.Update(ctx, run.ID, types.StagePersisting, 90); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := store.Fail(ctx, run.ID, "persistence unavailable"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	got, err := store.Get(ctx, run.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Stage != types.StageFailed {
		t.Fatalf("expected failed stage, got %s", got.Stage)
	}
	if got.Percent != 90 {
		t.Fatalf("expected percent frozen at 90, got %d", got.Percent)
	}
	if got.ErrorMessage != "persistence unavailable" {
		t.Fatalf("expected failure reason recorded, got %q", got.ErrorMessage)
	}

	// No further progress once failed.
	if err := store.Update(ctx, run.ID, types.StageCompleted, 100); err == nil {
		t.Fatal("expected update on failed run to be rejected")
	}
}

func TestConcurrentRunsProgressIndependently(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	checkpoints := []struct {
		stage   types.Stage
		percent int
	}{
		{types.StageTranscribing, 10},
		{types.StageAnalyzing, 60},
		{types.StageAnalyzing, 80},
		{types.StagePersisting, 90},
		{types.StageCompleted, 100},
	}

	const workers = 8
	runs := make([]*types.PipelineRun, workers)
	for i := range runs {
		runs[i] = newRun(t, store)
	}

	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for _, run := range runs {
		wg.Add(1)
		go func(runID string) {
			defer wg.Done()
			for _, cp := range checkpoints {
				if err := store.Update(ctx, runID, cp.stage, cp.percent); err != nil {
					errs <- err
					return
				}
			}
		}(run.ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent update failed: %v", err)
	}

	for _, run := range runs {
		got, err := store.Get(ctx, run.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Stage != types.StageCompleted || got.Percent != 100 {
			t.Fatalf("run %s: expected completed/100, got %s/%d", run.ID, got.Stage, got.Percent)
		}
	}
}

func TestGetUnknownRun(t *testing.T) {
	store := openStore(t)
	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, progress.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListReturnsRuns(t *testing.T) {
	store := openStore(t)
	newRun(t, store)
	newRun(t, store)

	runs, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
}
