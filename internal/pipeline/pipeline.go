// Package pipeline drives a conversion run through its five stages. The
// controller owns stage ordering, the fallback policy for refinement,
// bounded retries, and the temporary-artifact lifecycle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"clef/internal/config"
	"clef/internal/export"
	"clef/internal/fileutil"
	"clef/internal/logging"
	"clef/internal/notifications"
	"clef/internal/services"
	"clef/internal/stage"
)

// Stage names in execution order.
const (
	StageIngest     = "ingest"
	StageTranscribe = "transcribe"
	StageConvert    = "convert"
	StageRefine     = "refine"
	StageExport     = "export"
)

// maxStageRetries bounds the controller's retry policy regardless of
// configuration: one retry, and only for transient failures.
const maxStageRetries = 1

// StageRecord is the recorded outcome of one stage, in execution order.
type StageRecord struct {
	Name         string             `json:"name"`
	Success      bool               `json:"success"`
	ArtifactPath string             `json:"artifact_path,omitempty"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// FinalResult is the user-visible outcome of one run. Even failed runs
// carry the records of the stages that did complete.
type FinalResult struct {
	ProjectID    string
	Success      bool
	FailedStage  string
	Err          error
	Stages       []StageRecord
	NotationPath string
	PDFPath      string
	MetadataPath string
	Refined      bool
	Warnings     []string
	Elapsed      time.Duration
}

// Request describes one conversion run.
type Request struct {
	// Input is a local audio path or a media URL.
	Input string
	// ProjectID partitions all run output; reruns with the same id
	// overwrite rather than accumulate.
	ProjectID string
	// Instruction is optional free-text guidance for refinement.
	Instruction string
	// OnStageStart, when set, is invoked with each stage name just
	// before that stage executes. The queue drainer uses it to mirror
	// stage transitions into item statuses.
	OnStageStart func(stage string)
}

// Controller executes runs against an immutable configuration snapshot.
// Construct one per configuration; concurrent Run calls with distinct
// project ids are safe because each run owns its own state.
type Controller struct {
	cfg      *config.Config
	logger   *slog.Logger
	notifier notifications.Service

	ingest     stage.Handler
	transcribe stage.Handler
	convert    stage.Handler
	refine     stage.Handler
	exporter   stage.Handler
}

// New constructs a controller over the given stage handlers. The refine
// handler may be nil when refinement is disabled.
func New(cfg *config.Config, logger *slog.Logger, notifier notifications.Service, ingest, transcribe, convert, refine, exporter stage.Handler) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	return &Controller{
		cfg:        cfg,
		logger:     logger,
		notifier:   notifier,
		ingest:     ingest,
		transcribe: transcribe,
		convert:    convert,
		refine:     refine,
		exporter:   exporter,
	}
}

// runState is owned exclusively by one Run call.
type runState struct {
	projectID     string
	workDir       string
	outputDir     string
	started       time.Time
	tempArtifacts []string
	records       []StageRecord
}

func (s *runState) recordTemp(path string) {
	if path == "" {
		return
	}
	for _, existing := range s.tempArtifacts {
		if existing == path {
			return
		}
	}
	s.tempArtifacts = append(s.tempArtifacts, path)
}

func (s *runState) record(rec StageRecord) {
	s.records = append(s.records, rec)
}

// Run executes the full pipeline for one request. Mandatory stage
// failures halt the run; a refinement failure is logged and absorbed.
// All temporary artifacts are deleted exactly once before Run returns,
// whatever the outcome.
func (c *Controller) Run(ctx context.Context, req Request) FinalResult {
	started := time.Now()

	result := FinalResult{ProjectID: req.ProjectID}
	state := &runState{
		projectID: req.ProjectID,
		workDir:   filepath.Join(c.cfg.Paths.StagingDir, req.ProjectID),
		outputDir: filepath.Join(c.cfg.Paths.OutputDir, req.ProjectID),
		started:   started,
	}

	ctx = services.WithProjectID(ctx, req.ProjectID)
	logger := logging.WithContext(ctx, c.logger)

	defer func() {
		c.cleanup(logger, state)
		result.Stages = state.records
		result.Elapsed = time.Since(started)
	}()

	if req.ProjectID == "" {
		result.Err = services.Wrap(services.ErrValidation, "", "start", "project id required", nil)
		return result
	}
	if err := os.MkdirAll(state.workDir, 0o755); err != nil {
		result.Err = services.Wrap(services.ErrConfiguration, "", "start",
			fmt.Sprintf("create staging dir %s", state.workDir), err)
		return result
	}

	_ = c.notifier.NotifyConversionStarted(ctx, req.ProjectID, req.Input)

	// Ingest, transcribe, convert: mandatory, fail fast.
	artifact := req.Input
	for _, handler := range []stage.Handler{c.ingest, c.transcribe, c.convert} {
		notifyStageStart(req, handler.Name())
		res, err := c.runStage(ctx, logger, handler, state, stage.Request{
			ProjectID: req.ProjectID,
			InputPath: artifact,
			WorkDir:   state.workDir,
			OutputDir: state.outputDir,
		})
		if err != nil {
			return c.fail(ctx, logger, &result, handler.Name(), err)
		}
		state.recordTemp(res.ArtifactPath)
		artifact = res.ArtifactPath
	}
	convertArtifact := artifact

	// Refine: optional, non-fatal. On failure the pre-refinement artifact
	// goes to export unchanged.
	if c.refineEnabled() {
		notifyStageStart(req, c.refine.Name())
		res, err := c.runStage(ctx, logger, c.refine, state, stage.Request{
			ProjectID:   req.ProjectID,
			InputPath:   convertArtifact,
			WorkDir:     state.workDir,
			OutputDir:   state.outputDir,
			Instruction: req.Instruction,
		})
		if err != nil {
			reason := services.Message(err)
			logger.Warn("refinement failed, continuing with conversion output",
				logging.String(logging.FieldStage, StageRefine),
				logging.Error(err))
			result.Warnings = append(result.Warnings, reason)
			_ = c.notifier.NotifyRefinementSkipped(ctx, req.ProjectID, reason)
		} else {
			state.recordTemp(res.ArtifactPath)
			artifact = res.ArtifactPath
			result.Refined = true
		}
	}

	// Export: mandatory.
	notifyStageStart(req, c.exporter.Name())
	exportRes, err := c.runStage(ctx, logger, c.exporter, state, stage.Request{
		ProjectID: req.ProjectID,
		InputPath: artifact,
		WorkDir:   state.workDir,
		OutputDir: state.outputDir,
	})
	if err != nil {
		return c.fail(ctx, logger, &result, StageExport, err)
	}

	result.NotationPath = exportRes.ArtifactPath
	if c.cfg.Export.GeneratePDF {
		result.PDFPath = export.PDFPath(state.outputDir, req.ProjectID)
	}

	metadataPath, err := c.writeMetadata(state, req, &result)
	if err != nil {
		return c.fail(ctx, logger, &result, StageExport, err)
	}
	result.MetadataPath = metadataPath
	result.Success = true

	_ = c.notifier.NotifyConversionCompleted(ctx, req.ProjectID, qualityScore(state.records))

	logger.Info("run complete",
		logging.String("notation", result.NotationPath),
		logging.Bool("refined", result.Refined),
		logging.Duration("elapsed", time.Since(started)))
	return result
}

// runStage executes one stage with bounded retry. Only transient
// failures are retried, at most once.
func (c *Controller) runStage(ctx context.Context, logger *slog.Logger, handler stage.Handler, state *runState, req stage.Request) (stage.Result, error) {
	name := handler.Name()
	stageCtx := services.WithStage(ctx, name)
	stageLogger := logging.WithContext(stageCtx, c.logger)
	// Handlers are shared across runs; the run-scoped logger travels on
	// the request instead of being installed on the handler.
	req.Logger = stageLogger

	retries := c.cfg.Workflow.StageRetryLimit
	if retries > maxStageRetries {
		retries = maxStageRetries
	}

	var res stage.Result
	var err error
	for attempt := 0; ; attempt++ {
		stageLogger.Info("stage started",
			logging.String(logging.FieldEventType, "stage_start"),
			logging.Int("attempt", attempt+1))

		startedAt := time.Now()
		res, err = handler.Execute(stageCtx, req)
		// Intermediates reported on a failed attempt still belong to the
		// run and must reach the ledger so cleanup can remove them.
		for _, temp := range res.TempPaths {
			state.recordTemp(temp)
		}
		if err == nil {
			state.record(StageRecord{
				Name:         name,
				Success:      true,
				ArtifactPath: res.ArtifactPath,
				Metrics:      res.Metrics,
			})
			stageLogger.Info("stage completed",
				logging.String(logging.FieldEventType, "stage_complete"),
				logging.Duration("elapsed", time.Since(startedAt)))
			return res, nil
		}
		if attempt >= retries || !errors.Is(err, services.ErrTransient) || ctx.Err() != nil {
			break
		}
		stageLogger.Warn("stage failed, retrying",
			logging.String(logging.FieldEventType, "stage_retry"),
			logging.Error(err))
	}

	state.record(StageRecord{Name: name, Success: false, Error: services.Message(err)})
	stageLogger.Error("stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.Error(err))
	return stage.Result{}, err
}

func notifyStageStart(req Request, stage string) {
	if req.OnStageStart != nil {
		req.OnStageStart(stage)
	}
}

func (c *Controller) refineEnabled() bool {
	return c.refine != nil && c.cfg.Refinement.Enabled
}

func (c *Controller) fail(ctx context.Context, logger *slog.Logger, result *FinalResult, stageName string, err error) FinalResult {
	if recovered := services.Stage(err); recovered != "" {
		stageName = recovered
	}
	result.Success = false
	result.FailedStage = stageName
	result.Err = err
	_ = c.notifier.NotifyError(ctx, err, fmt.Sprintf("%s (%s)", stageName, result.ProjectID))
	logger.Error("run failed",
		logging.String(logging.FieldStage, stageName),
		logging.Error(err))
	return *result
}

// cleanup deletes every recorded temp artifact exactly once. Failures are
// logged and swallowed; they never change the run's verdict.
func (c *Controller) cleanup(logger *slog.Logger, state *runState) {
	for _, path := range state.tempArtifacts {
		if err := fileutil.RemoveIfExists(path); err != nil {
			logger.Warn("temp artifact cleanup failed",
				logging.String("path", path),
				logging.Error(err))
		}
	}
	state.tempArtifacts = nil
	// The per-run staging directory holds only temp artifacts; removing it
	// is best effort and only succeeds once it is empty.
	if state.workDir != "" {
		_ = os.Remove(state.workDir)
	}
}

// QualityScore returns the conversion stage's quality score, or zero
// when the stage never completed.
func (r FinalResult) QualityScore() float64 {
	return qualityScore(r.Stages)
}

func qualityScore(records []StageRecord) float64 {
	for _, rec := range records {
		if rec.Name == StageConvert && rec.Metrics != nil {
			return rec.Metrics["quality_score"]
		}
	}
	return 0
}
