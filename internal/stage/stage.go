// Package stage defines the contract every pipeline stage implements and
// the artifact validation helpers shared by the stage adapters.
package stage

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"clef/internal/logging"
	"clef/internal/services"
)

// Request carries the inputs one stage needs for a single run.
type Request struct {
	ProjectID string
	// InputPath is the previous stage's artifact, or the original source
	// for the first stage.
	InputPath string
	// WorkDir holds intermediate artifacts; the controller deletes them
	// when the run ends.
	WorkDir string
	// OutputDir is the per-project export directory. Only the export
	// stage writes into it.
	OutputDir string
	// Instruction is the optional free-text guidance forwarded to the
	// refinement stage.
	Instruction string
	// Logger is the run-scoped logger for this execution. Stages must
	// read it from the request rather than retain it: handlers are
	// shared between concurrent runs and hold no per-run state.
	Logger *slog.Logger
}

// RequestLogger returns the logger carried on req, or a no-op logger
// when the caller did not provide one.
func RequestLogger(req Request) *slog.Logger {
	if req.Logger != nil {
		return req.Logger
	}
	return logging.NewNop()
}

// Result is the outcome of one stage. On success ArtifactPath names the
// produced artifact; on failure a stage still fills TempPaths with any
// intermediates it created before the error so the controller can delete
// them.
type Result struct {
	ArtifactPath string
	Metrics      map[string]float64
	// TempPaths lists intermediate files beyond the artifact itself that
	// the controller must delete when the run ends.
	TempPaths []string
}

// Handler is the contract the pipeline controller drives. Execute either
// returns a Result with a non-empty artifact path or an error wrapped
// with the stage's failure marker.
type Handler interface {
	Name() string
	Execute(context.Context, Request) (Result, error)
	HealthCheck(context.Context) Health
}

// Health summarizes the readiness of a pipeline stage.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// RequireArtifact verifies the previous stage's artifact exists and is
// non-empty before a collaborator is invoked.
func RequireArtifact(stageName, path string) error {
	if path == "" {
		return services.Wrap(services.ErrValidation, stageName, "check input",
			"previous stage produced no artifact", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return services.Wrap(services.ErrValidation, stageName, "check input",
			fmt.Sprintf("input artifact %s is unreadable", path), err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrValidation, stageName, "check input",
			fmt.Sprintf("input artifact %s is a directory", path), nil)
	}
	if info.Size() == 0 {
		return services.Wrap(services.ErrValidation, stageName, "check input",
			fmt.Sprintf("input artifact %s is empty", path), nil)
	}
	return nil
}

// VerifyProduced confirms a collaborator's declared output exists and is
// non-empty before the stage reports success.
func VerifyProduced(marker error, stageName, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return services.Wrap(marker, stageName, "verify output",
			fmt.Sprintf("declared output %s is missing", path), err)
	}
	if info.Size() == 0 {
		return services.Wrap(marker, stageName, "verify output",
			fmt.Sprintf("declared output %s is empty", path), nil)
	}
	return nil
}
