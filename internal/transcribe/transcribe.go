// Package transcribe implements the pitch-transcription pipeline stage.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"clef/internal/config"
	"clef/internal/logging"
	"clef/internal/midifile"
	"clef/internal/services"
	"clef/internal/services/basicpitch"
	"clef/internal/stage"
)

const stageName = "transcribe"

// Stage runs the transcription model over decoded audio and reports the
// true number of detected notes by decoding the model's MIDI output.
// Handlers are shared between concurrent runs and hold no per-run state.
type Stage struct {
	cfg         *config.Config
	transcriber basicpitch.Client
}

// New constructs the transcribe stage.
func New(cfg *config.Config, transcriber basicpitch.Client) *Stage {
	return &Stage{
		cfg:         cfg,
		transcriber: transcriber,
	}
}

func (s *Stage) Name() string { return stageName }

// Execute transcribes the ingest artifact into a MIDI artifact.
func (s *Stage) Execute(ctx context.Context, req stage.Request) (stage.Result, error) {
	started := time.Now()

	if err := stage.RequireArtifact(stageName, req.InputPath); err != nil {
		return stage.Result{}, err
	}

	runCtx := ctx
	if timeout := s.cfg.Transcription.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}

	opts := basicpitch.Options{
		OnsetThreshold: s.cfg.Transcription.OnsetThreshold,
		FrameThreshold: s.cfg.Transcription.FrameThreshold,
		MinNoteSeconds: s.cfg.Transcription.MinNoteSeconds,
		MinFrequencyHz: s.cfg.Transcription.MinFrequencyHz,
		MaxFrequencyHz: s.cfg.Transcription.MaxFrequencyHz,
	}
	produced, err := s.transcriber.Transcribe(runCtx, req.InputPath, req.WorkDir, opts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return stage.Result{}, services.Wrap(services.ErrTimeout, stageName, "transcribe",
				"transcription model timed out", err)
		}
		return stage.Result{}, services.Wrap(services.ErrTranscription, stageName, "transcribe",
			"transcription model failed", err)
	}

	// The model names its output after the audio stem; move it to the
	// deterministic per-project artifact name so reruns overwrite.
	// Report the produced file on every exit so the controller can
	// ledger it even when a later step in this stage fails.
	artifact := filepath.Join(req.WorkDir, fmt.Sprintf("%s_%s.mid", req.ProjectID, stageName))
	if produced != artifact {
		if err := os.Rename(produced, artifact); err != nil {
			return stage.Result{TempPaths: []string{produced}}, services.Wrap(services.ErrTranscription, stageName, "rename output",
				fmt.Sprintf("move %s to %s", produced, artifact), err)
		}
	}
	if err := stage.VerifyProduced(services.ErrTranscription, stageName, artifact); err != nil {
		return stage.Result{TempPaths: []string{artifact}}, err
	}

	detected, err := detectedEvents(artifact)
	if err != nil {
		return stage.Result{TempPaths: []string{artifact}}, services.Wrap(services.ErrTranscription, stageName, "decode output",
			"transcription produced an unreadable MIDI file", err)
	}

	stage.RequestLogger(req).Info("transcription complete",
		logging.String("artifact", artifact),
		logging.Int("detected_events", detected))

	return stage.Result{
		ArtifactPath: artifact,
		Metrics: map[string]float64{
			"detected_events": float64(detected),
			"elapsed_seconds": time.Since(started).Seconds(),
		},
	}, nil
}

// detectedEvents decodes the MIDI artifact and counts matched notes, a
// real signal rather than an estimate from the file size.
func detectedEvents(path string) (int, error) {
	file, err := midifile.DecodeFile(path)
	if err != nil {
		return 0, err
	}
	return file.NoteCount(), nil
}

// HealthCheck verifies the transcription binary is available.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	binary := s.cfg.Transcription.BasicPitchBinary
	if binary == "" {
		binary = "basic-pitch"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return stage.Unhealthy(stageName, fmt.Sprintf("%s not found on PATH", binary))
	}
	return stage.Healthy(stageName)
}

var _ stage.Handler = (*Stage)(nil)
