// Package export implements the final pipeline stage: assembling the
// per-project output bundle and optionally rendering a PDF.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"clef/internal/config"
	"clef/internal/fileutil"
	"clef/internal/logging"
	"clef/internal/services"
	"clef/internal/services/musescore"
	"clef/internal/stage"
)

const stageName = "export"

// Stage copies the notation artifact into the export directory and renders
// the optional PDF. Handlers are shared between concurrent runs and hold
// no per-run state.
type Stage struct {
	cfg      *config.Config
	renderer musescore.Client
}

// New constructs the export stage.
func New(cfg *config.Config, renderer musescore.Client) *Stage {
	return &Stage{cfg: cfg, renderer: renderer}
}

func (s *Stage) Name() string { return stageName }

// NotationPath returns the exported notation file location for a project.
func NotationPath(outputDir, projectID string) string {
	return filepath.Join(outputDir, projectID+".musicxml")
}

// PDFPath returns the rendered PDF location for a project.
func PDFPath(outputDir, projectID string) string {
	return filepath.Join(outputDir, projectID+".pdf")
}

// Execute copies the final notation into the bundle and renders the PDF
// when enabled. The notation copy is verified byte for byte.
func (s *Stage) Execute(ctx context.Context, req stage.Request) (stage.Result, error) {
	started := time.Now()

	if err := stage.RequireArtifact(stageName, req.InputPath); err != nil {
		return stage.Result{}, err
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return stage.Result{}, services.Wrap(services.ErrRender, stageName, "create bundle dir",
			fmt.Sprintf("create %s", req.OutputDir), err)
	}

	notation := NotationPath(req.OutputDir, req.ProjectID)
	if err := fileutil.CopyFileVerified(req.InputPath, notation); err != nil {
		return stage.Result{}, services.Wrap(services.ErrRender, stageName, "copy notation",
			fmt.Sprintf("copy %s to %s", req.InputPath, notation), err)
	}

	metrics := map[string]float64{"pdf_generated": 0}

	if s.cfg.Export.GeneratePDF {
		if err := s.render(ctx, notation, PDFPath(req.OutputDir, req.ProjectID)); err != nil {
			return stage.Result{}, err
		}
		metrics["pdf_generated"] = 1
	}

	metrics["elapsed_seconds"] = time.Since(started).Seconds()

	stage.RequestLogger(req).Info("export bundle assembled",
		logging.String("notation", notation),
		logging.Bool("pdf", s.cfg.Export.GeneratePDF))

	return stage.Result{ArtifactPath: notation, Metrics: metrics}, nil
}

func (s *Stage) render(ctx context.Context, notation, pdf string) error {
	if s.renderer == nil {
		return services.Wrap(services.ErrRender, stageName, "render",
			"pdf rendering enabled but no renderer configured", nil)
	}
	renderCtx := ctx
	if timeout := s.cfg.Export.RenderTimeout; timeout > 0 {
		var cancel context.CancelFunc
		renderCtx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}
	if err := s.renderer.Render(renderCtx, notation, pdf); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, stageName, "render", "pdf rendering timed out", err)
		}
		return services.Wrap(services.ErrRender, stageName, "render",
			fmt.Sprintf("render %s", pdf), err)
	}
	return stage.VerifyProduced(services.ErrRender, stageName, pdf)
}

// HealthCheck verifies the renderer is available when PDF output is on.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if !s.cfg.Export.GeneratePDF {
		return stage.Healthy(stageName)
	}
	cli, ok := s.renderer.(*musescore.CLI)
	if !ok {
		if s.renderer == nil {
			return stage.Unhealthy(stageName, "pdf rendering enabled but no renderer configured")
		}
		return stage.Healthy(stageName)
	}
	if _, err := cli.Binary(); err != nil {
		return stage.Unhealthy(stageName, "musescore not found on PATH")
	}
	return stage.Healthy(stageName)
}

var _ stage.Handler = (*Stage)(nil)
