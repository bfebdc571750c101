package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"clef/internal/config"
	"clef/internal/logging"
	"clef/internal/notifications"
	"clef/internal/pipeline"
	"clef/internal/queue"
	"clef/internal/services"
)

// ErrAlreadyRunning indicates another process holds the drain lock.
var ErrAlreadyRunning = errors.New("another clef process is draining the queue")

// Runner abstracts the pipeline controller for tests.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) pipeline.FinalResult
}

// Summary reports the outcome of one drain pass.
type Summary struct {
	Processed int
	Failed    int
	Elapsed   time.Duration
}

// Processor drains pending queue items sequentially through the
// pipeline controller.
type Processor struct {
	cfg      *config.Config
	store    *queue.Store
	runner   Runner
	notifier notifications.Service
	logger   *slog.Logger

	lockPath string
	lock     *flock.Flock
}

// NewProcessor constructs a queue drainer. The notifier may be nil, in
// which case one is built from the config.
func NewProcessor(cfg *config.Config, store *queue.Store, runner Runner, notifier notifications.Service, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "clef-queue.lock")
	return &Processor{
		cfg:      cfg,
		store:    store,
		runner:   runner,
		notifier: notifier,
		logger:   logger,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
}

// LockPath returns the drain lock file location.
func (p *Processor) LockPath() string {
	return p.lockPath
}

// ProcessAll drains every pending item and returns a summary. Items
// stuck in a processing status from a previous crash are reset to
// pending first. Returns ErrAlreadyRunning when another drainer holds
// the lock.
func (p *Processor) ProcessAll(ctx context.Context) (Summary, error) {
	ok, err := p.lock.TryLock()
	if err != nil {
		return Summary{}, fmt.Errorf("acquire drain lock: %w", err)
	}
	if !ok {
		return Summary{}, ErrAlreadyRunning
	}
	defer func() {
		if unlockErr := p.lock.Unlock(); unlockErr != nil {
			p.logger.Warn("failed to release drain lock", logging.Error(unlockErr))
		}
	}()

	started := time.Now()

	reset, err := p.store.ResetStuckProcessing(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("reset stuck items: %w", err)
	}
	if reset > 0 {
		p.logger.Info("reset stuck items to pending", logging.Int("count", int(reset)))
	}

	pending, err := p.store.List(ctx, queue.StatusPending)
	if err != nil {
		return Summary{}, fmt.Errorf("count pending items: %w", err)
	}
	if len(pending) == 0 {
		return Summary{}, nil
	}
	_ = p.notifier.NotifyQueueStarted(ctx, len(pending))

	var summary Summary
	for {
		if ctx.Err() != nil {
			break
		}
		item, err := p.store.NextPending(ctx)
		if err != nil {
			return summary, fmt.Errorf("next pending item: %w", err)
		}
		if item == nil {
			break
		}
		if p.processItem(ctx, item) {
			summary.Processed++
		} else {
			summary.Failed++
		}
	}

	summary.Elapsed = time.Since(started)
	_ = p.notifier.NotifyQueueCompleted(ctx, summary.Processed, summary.Failed, summary.Elapsed)

	p.logger.Info("queue drained",
		logging.Int("processed", summary.Processed),
		logging.Int("failed", summary.Failed),
		logging.Duration("elapsed", summary.Elapsed))
	return summary, ctx.Err()
}

// Poll drains the queue, then keeps polling for new pending items at
// the configured interval until the context is cancelled.
func (p *Processor) Poll(ctx context.Context) error {
	interval := time.Duration(p.cfg.Workflow.QueuePollInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := p.ProcessAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// processItem runs one item through the pipeline and persists the
// outcome. Returns true on success.
func (p *Processor) processItem(ctx context.Context, item *queue.Item) bool {
	logger := p.logger.With(logging.String("project_id", item.ProjectID))
	logger.Info("processing queue item", logging.Int("item_id", int(item.ID)))

	result := p.runner.Run(ctx, pipeline.Request{
		Input:       item.Source,
		ProjectID:   item.ProjectID,
		Instruction: item.Instruction,
		OnStageStart: func(stage string) {
			if err := p.store.MarkProcessing(ctx, item, stage); err != nil {
				logger.Warn("failed to update item status",
					logging.String(logging.FieldStage, stage),
					logging.Error(err))
			}
		},
	})

	now := time.Now().UTC()
	if result.Success {
		item.SetCompleted(result)
		item.CompletedAt = &now
	} else {
		item.SetFailed(failureMessage(result))
		item.CompletedAt = &now
	}
	if err := p.store.Update(ctx, item); err != nil {
		logger.Error("failed to persist item outcome", logging.Error(err))
		return false
	}
	return result.Success
}

func failureMessage(result pipeline.FinalResult) string {
	msg := services.Message(result.Err)
	if msg == "" && result.Err != nil {
		msg = result.Err.Error()
	}
	if result.FailedStage != "" {
		return fmt.Sprintf("%s: %s", result.FailedStage, msg)
	}
	return msg
}
