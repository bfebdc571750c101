// Package convert implements the notation-conversion pipeline stage. It
// decodes the transcription MIDI, runs the pure normalization and
// quality-scoring functions, and serializes the result as MusicXML.
package convert

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"clef/internal/config"
	"clef/internal/logging"
	"clef/internal/midifile"
	"clef/internal/musicxml"
	"clef/internal/notestream"
	"clef/internal/services"
	"clef/internal/stage"
)

const stageName = "convert"

// Stage converts the MIDI artifact into notated music. Handlers are
// shared between concurrent runs and hold no per-run state.
type Stage struct {
	cfg *config.Config
}

// New constructs the convert stage.
func New(cfg *config.Config) *Stage {
	return &Stage{cfg: cfg}
}

func (s *Stage) Name() string { return stageName }

// NormalizeOptions maps the conversion configuration to normalizer options.
func NormalizeOptions(cfg *config.Config) notestream.Options {
	num, den := cfg.QuantizeUnit()
	tempo := float64(cfg.Conversion.DefaultTempoBPM)
	if tempo <= 0 {
		tempo = 120
	}
	return notestream.Options{
		Quantize:             cfg.Conversion.Quantize,
		Resolution:           notestream.NewBeat(num, den),
		RemoveRedundantRests: cfg.Conversion.RemoveRedundantRests,
		ResolveOverlaps:      cfg.Conversion.ResolveOverlaps,
		InferKey:             cfg.Conversion.InferKey,
		InferMeter:           cfg.Conversion.InferMeter,
		InsertDefaultTempo:   cfg.Conversion.InsertDefaultTempo,
		DefaultTempoBPM:      tempo,
	}
}

// Execute normalizes the transcribed note stream and writes the MusicXML
// artifact, attaching the quality report to the stage metrics.
func (s *Stage) Execute(ctx context.Context, req stage.Request) (stage.Result, error) {
	started := time.Now()

	if err := stage.RequireArtifact(stageName, req.InputPath); err != nil {
		return stage.Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return stage.Result{}, services.Wrap(services.ErrTimeout, stageName, "convert", "conversion aborted", err)
	}

	file, err := midifile.DecodeFile(req.InputPath)
	if err != nil {
		return stage.Result{}, services.Wrap(services.ErrConversion, stageName, "decode midi",
			fmt.Sprintf("decode %s", req.InputPath), err)
	}

	normalized, err := notestream.Normalize(file.Stream(), NormalizeOptions(s.cfg))
	if err != nil {
		var malformed *notestream.MalformedEventError
		if errors.As(err, &malformed) {
			return stage.Result{}, services.Wrap(services.ErrConversion, stageName, "normalize",
				malformed.Error(), err)
		}
		return stage.Result{}, services.Wrap(services.ErrConversion, stageName, "normalize",
			"note stream normalization failed", err)
	}

	report := notestream.Score(normalized)

	artifact := filepath.Join(req.WorkDir, fmt.Sprintf("%s_%s.musicxml", req.ProjectID, stageName))
	if err := musicxml.WriteFile(artifact, normalized, req.ProjectID); err != nil {
		return stage.Result{TempPaths: []string{artifact}}, services.Wrap(services.ErrSerialization, stageName, "serialize",
			fmt.Sprintf("write %s", artifact), err)
	}
	if err := stage.VerifyProduced(services.ErrSerialization, stageName, artifact); err != nil {
		return stage.Result{TempPaths: []string{artifact}}, err
	}

	stage.RequestLogger(req).Info("conversion complete",
		logging.String("artifact", artifact),
		logging.Int("note_count", normalized.NoteCount()),
		logging.Float64("quality_score", report.Score))

	metrics := map[string]float64{
		"note_count":      float64(normalized.NoteCount()),
		"quality_score":   report.Score,
		"elapsed_seconds": time.Since(started).Seconds(),
	}
	for name, value := range report.Components {
		metrics["quality_"+name] = value
	}

	return stage.Result{ArtifactPath: artifact, Metrics: metrics}, nil
}

// HealthCheck always succeeds: conversion is pure computation.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(stageName)
}

var _ stage.Handler = (*Stage)(nil)
