package workflow_test

import (
	"context"
	"sync"
	"testing"

	"clef/internal/pipeline"
	"clef/internal/queue"
	"clef/internal/services"
	"clef/internal/testsupport"
	"clef/internal/workflow"
)

type fakeRunner struct {
	mu     sync.Mutex
	runs   []pipeline.Request
	result func(req pipeline.Request) pipeline.FinalResult
}

func (f *fakeRunner) Run(_ context.Context, req pipeline.Request) pipeline.FinalResult {
	f.mu.Lock()
	f.runs = append(f.runs, req)
	f.mu.Unlock()
	if req.OnStageStart != nil {
		req.OnStageStart(pipeline.StageIngest)
		req.OnStageStart(pipeline.StageConvert)
	}
	if f.result != nil {
		return f.result(req)
	}
	return pipeline.FinalResult{ProjectID: req.ProjectID, Success: true, NotationPath: "/out/" + req.ProjectID + ".musicxml"}
}

func TestProcessAllDrainsPending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for _, id := range []string{"proj-1", "proj-2"} {
		if _, err := store.NewProject(ctx, id, "/music/"+id+".wav", ""); err != nil {
			t.Fatalf("NewProject failed: %v", err)
		}
	}

	runner := &fakeRunner{}
	processor := workflow.NewProcessor(cfg, store, runner, nil, nil)

	summary, err := processor.ProcessAll(ctx)
	if err != nil {
		t.Fatalf("ProcessAll failed: %v", err)
	}
	if summary.Processed != 2 || summary.Failed != 0 {
		t.Fatalf("summary = %+v, want 2 processed", summary)
	}
	if len(runner.runs) != 2 {
		t.Fatalf("runner invoked %d times, want 2", len(runner.runs))
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for _, item := range items {
		if item.Status != queue.StatusCompleted {
			t.Errorf("item %s status = %q, want completed", item.ProjectID, item.Status)
		}
		if item.NotationPath == "" {
			t.Errorf("item %s missing notation path", item.ProjectID)
		}
		if item.CompletedAt == nil {
			t.Errorf("item %s missing completion time", item.ProjectID)
		}
	}
}

func TestProcessAllRecordsFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.NewProject(ctx, "proj-1", "/music/a.wav", ""); err != nil {
		t.Fatalf("NewProject failed: %v", err)
	}

	runner := &fakeRunner{
		result: func(req pipeline.Request) pipeline.FinalResult {
			return pipeline.FinalResult{
				ProjectID:   req.ProjectID,
				Success:     false,
				FailedStage: pipeline.StageTranscribe,
				Err:         services.Wrap(services.ErrTranscription, pipeline.StageTranscribe, "run model", "model crashed", nil),
			}
		},
	}
	processor := workflow.NewProcessor(cfg, store, runner, nil, nil)

	summary, err := processor.ProcessAll(ctx)
	if err != nil {
		t.Fatalf("ProcessAll failed: %v", err)
	}
	if summary.Processed != 0 || summary.Failed != 1 {
		t.Fatalf("summary = %+v, want 1 failed", summary)
	}

	item, err := store.GetByProjectID(ctx, "proj-1")
	if err != nil {
		t.Fatalf("GetByProjectID failed: %v", err)
	}
	if item.Status != queue.StatusFailed {
		t.Errorf("status = %q, want failed", item.Status)
	}
	if item.ErrorMessage == "" {
		t.Error("error message not recorded")
	}
}

func TestProcessAllResetsStuckItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item, err := store.NewProject(ctx, "proj-1", "/music/a.wav", "")
	if err != nil {
		t.Fatalf("NewProject failed: %v", err)
	}
	item.Status = queue.StatusTranscribing
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	runner := &fakeRunner{}
	processor := workflow.NewProcessor(cfg, store, runner, nil, nil)

	summary, err := processor.ProcessAll(ctx)
	if err != nil {
		t.Fatalf("ProcessAll failed: %v", err)
	}
	if summary.Processed != 1 {
		t.Fatalf("summary = %+v, want stuck item reprocessed", summary)
	}
}

func TestProcessAllEmptyQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	runner := &fakeRunner{}
	processor := workflow.NewProcessor(cfg, store, runner, nil, nil)

	summary, err := processor.ProcessAll(context.Background())
	if err != nil {
		t.Fatalf("ProcessAll failed: %v", err)
	}
	if summary.Processed != 0 || summary.Failed != 0 {
		t.Fatalf("summary = %+v, want empty", summary)
	}
	if len(runner.runs) != 0 {
		t.Errorf("runner invoked %d times on empty queue", len(runner.runs))
	}
}

func TestProcessAllSingleDrainer(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.NewProject(ctx, "proj-1", "/music/a.wav", ""); err != nil {
		t.Fatalf("NewProject failed: %v", err)
	}

	release := make(chan struct{})
	started := make(chan struct{})
	runner := &fakeRunner{
		result: func(req pipeline.Request) pipeline.FinalResult {
			close(started)
			<-release
			return pipeline.FinalResult{ProjectID: req.ProjectID, Success: true}
		},
	}
	first := workflow.NewProcessor(cfg, store, runner, nil, nil)
	second := workflow.NewProcessor(cfg, store, &fakeRunner{}, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := first.ProcessAll(ctx)
		done <- err
	}()

	<-started
	if _, err := second.ProcessAll(ctx); err != workflow.ErrAlreadyRunning {
		t.Errorf("second drainer error = %v, want ErrAlreadyRunning", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first drainer failed: %v", err)
	}
}
