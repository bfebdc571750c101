// Package refine implements the optional LLM refinement pipeline stage.
// Its failure never fails a run: the controller falls back to the
// conversion artifact whenever this stage reports an error.
package refine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clef/internal/config"
	"clef/internal/logging"
	"clef/internal/musicxml"
	"clef/internal/services"
	"clef/internal/services/llm"
	"clef/internal/stage"
)

const stageName = "refine"

// Refiner is the narrow slice of the LLM client this stage needs.
type Refiner interface {
	RefineNotation(ctx context.Context, content, style, instruction string) (llm.Refinement, error)
}

// Stage sends the conversion artifact to the refinement service and
// validates whatever comes back before trusting it. Handlers are shared
// between concurrent runs and hold no per-run state.
type Stage struct {
	cfg     *config.Config
	refiner Refiner
}

// New constructs the refine stage.
func New(cfg *config.Config, refiner Refiner) *Stage {
	return &Stage{cfg: cfg, refiner: refiner}
}

func (s *Stage) Name() string { return stageName }

// Execute asks the model for a revised document. The revision replaces
// the conversion artifact only if it parses as MusicXML and still carries
// at least one note.
func (s *Stage) Execute(ctx context.Context, req stage.Request) (stage.Result, error) {
	started := time.Now()

	if s.refiner == nil {
		return stage.Result{}, services.Wrap(services.ErrRefinement, stageName, "configure",
			"refinement service is not configured", nil)
	}
	if err := stage.RequireArtifact(stageName, req.InputPath); err != nil {
		return stage.Result{}, err
	}

	content, err := os.ReadFile(req.InputPath)
	if err != nil {
		return stage.Result{}, services.Wrap(services.ErrRefinement, stageName, "read input",
			fmt.Sprintf("read %s", req.InputPath), err)
	}

	runCtx := ctx
	if timeout := s.cfg.Refinement.TimeoutSeconds; timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}

	refined, err := s.refiner.RefineNotation(runCtx, string(content), s.cfg.Refinement.Style, req.Instruction)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return stage.Result{}, services.Wrap(services.ErrTimeout, stageName, "refine",
				"refinement service timed out", err)
		}
		return stage.Result{}, services.Wrap(services.ErrRefinement, stageName, "refine",
			"refinement service failed", err)
	}

	// The model is unreliable: reject output that is not a loadable score.
	if err := musicxml.Validate([]byte(refined.Content)); err != nil {
		return stage.Result{}, services.Wrap(services.ErrRefinement, stageName, "validate output",
			"refinement returned malformed notation", err)
	}

	artifact := filepath.Join(req.WorkDir, fmt.Sprintf("%s_%s.musicxml", req.ProjectID, stageName))
	if err := os.WriteFile(artifact, []byte(refined.Content), 0o644); err != nil {
		return stage.Result{TempPaths: []string{artifact}}, services.Wrap(services.ErrRefinement, stageName, "write output",
			fmt.Sprintf("write %s", artifact), err)
	}
	if err := stage.VerifyProduced(services.ErrRefinement, stageName, artifact); err != nil {
		return stage.Result{TempPaths: []string{artifact}}, err
	}

	logger := stage.RequestLogger(req)
	for _, change := range refined.Changes {
		if change != "" {
			logger.Info("refinement change", logging.String("description", change))
		}
	}

	return stage.Result{
		ArtifactPath: artifact,
		Metrics: map[string]float64{
			"change_count":    float64(len(refined.Changes)),
			"elapsed_seconds": time.Since(started).Seconds(),
		},
	}, nil
}

// HealthCheck reports whether refinement is usable as configured.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if !s.cfg.Refinement.Enabled {
		return stage.Unhealthy(stageName, "refinement disabled")
	}
	if strings.TrimSpace(s.cfg.Refinement.APIKey) == "" {
		return stage.Unhealthy(stageName, "refinement api key not configured")
	}
	return stage.Healthy(stageName)
}

var _ stage.Handler = (*Stage)(nil)
