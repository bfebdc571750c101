// Package ingest implements the first pipeline stage: turning a local
// audio file or a media URL into decoded mono PCM at a fixed sample rate.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"clef/internal/config"
	"clef/internal/logging"
	"clef/internal/services"
	"clef/internal/services/ffmpeg"
	"clef/internal/services/ytdlp"
	"clef/internal/stage"
)

const stageName = "ingest"

// Stage downloads and decodes source audio. Handlers are shared between
// concurrent runs and hold no per-run state.
type Stage struct {
	cfg        *config.Config
	downloader ytdlp.Client
	decoder    ffmpeg.Client
}

// New constructs the ingest stage.
func New(cfg *config.Config, downloader ytdlp.Client, decoder ffmpeg.Client) *Stage {
	return &Stage{
		cfg:        cfg,
		downloader: downloader,
		decoder:    decoder,
	}
}

func (s *Stage) Name() string { return stageName }

// IsURL reports whether input should be fetched rather than read from disk.
func IsURL(input string) bool {
	input = strings.TrimSpace(strings.ToLower(input))
	return strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://")
}

// Execute resolves the source audio and decodes it to the stage artifact.
func (s *Stage) Execute(ctx context.Context, req stage.Request) (stage.Result, error) {
	started := time.Now()

	source := strings.TrimSpace(req.InputPath)
	if source == "" {
		return stage.Result{}, s.wrap(services.ErrValidation, "resolve source", "no input provided", nil)
	}

	var tempPaths []string
	if IsURL(source) {
		downloaded, err := s.download(ctx, source, req.WorkDir)
		if err != nil {
			return stage.Result{}, err
		}
		source = downloaded
		tempPaths = append(tempPaths, downloaded)
	} else if info, err := os.Stat(source); err != nil || info.IsDir() {
		return stage.Result{}, s.wrap(services.ErrIngest, "resolve source",
			fmt.Sprintf("source audio %s is unreadable", source), err)
	}

	// Report temps produced so far on every exit so the controller can
	// ledger them even when a later step in this stage fails.
	artifact := filepath.Join(req.WorkDir, fmt.Sprintf("%s_%s.wav", req.ProjectID, stageName))
	result, err := s.decode(ctx, source, artifact)
	if err != nil {
		return stage.Result{TempPaths: append(tempPaths, artifact)}, err
	}
	if err := stage.VerifyProduced(services.ErrIngest, stageName, artifact); err != nil {
		return stage.Result{TempPaths: append(tempPaths, artifact)}, err
	}

	stage.RequestLogger(req).Info("audio decoded",
		logging.String("artifact", artifact),
		logging.Float64("duration_seconds", result.DurationSeconds))

	return stage.Result{
		ArtifactPath: artifact,
		TempPaths:    tempPaths,
		Metrics: map[string]float64{
			"duration_seconds": result.DurationSeconds,
			"sample_rate":      float64(result.SampleRate),
			"channels":         float64(result.Channels),
			"elapsed_seconds":  time.Since(started).Seconds(),
		},
	}, nil
}

func (s *Stage) download(ctx context.Context, url, workDir string) (string, error) {
	if s.downloader == nil {
		return "", s.wrap(services.ErrIngest, "download", "url ingest is not configured", nil)
	}
	downloadCtx := ctx
	if timeout := s.cfg.Ingest.DownloadTimeout; timeout > 0 {
		var cancel context.CancelFunc
		downloadCtx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}
	path, err := s.downloader.Download(downloadCtx, url, workDir)
	if err != nil {
		return "", s.classify("download", fmt.Sprintf("fetch %s", url), err)
	}
	return path, nil
}

func (s *Stage) decode(ctx context.Context, source, artifact string) (ffmpeg.Result, error) {
	decodeCtx := ctx
	if timeout := s.cfg.Ingest.DecodeTimeout; timeout > 0 {
		var cancel context.CancelFunc
		decodeCtx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}
	result, err := s.decoder.Decode(decodeCtx, source, artifact, s.cfg.Ingest.SampleRate, s.cfg.Ingest.Channels)
	if err != nil {
		return ffmpeg.Result{}, s.classify("decode", fmt.Sprintf("decode %s", source), err)
	}
	return result, nil
}

func (s *Stage) classify(op, msg string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return s.wrap(services.ErrTimeout, op, msg, err)
	}
	return s.wrap(services.ErrIngest, op, msg, err)
}

func (s *Stage) wrap(marker error, op, msg string, err error) error {
	return services.Wrap(marker, stageName, op, msg, err)
}

// HealthCheck verifies the decoding toolchain is available.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(s.cfg.FFmpegBinary()); err != nil {
		return stage.Unhealthy(stageName, "ffmpeg not found on PATH")
	}
	if _, err := exec.LookPath(s.cfg.FFprobeBinary()); err != nil {
		return stage.Unhealthy(stageName, "ffprobe not found on PATH")
	}
	return stage.Healthy(stageName)
}

var _ stage.Handler = (*Stage)(nil)
