package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"clef/internal/config"
	"clef/internal/convert"
	"clef/internal/export"
	"clef/internal/ingest"
	"clef/internal/logging"
	"clef/internal/notifications"
	"clef/internal/pipeline"
	"clef/internal/queue"
	"clef/internal/refine"
	"clef/internal/services/basicpitch"
	"clef/internal/services/ffmpeg"
	"clef/internal/services/llm"
	"clef/internal/services/musescore"
	"clef/internal/services/ytdlp"
	"clef/internal/stage"
	"clef/internal/transcribe"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewFromConfig(cfg)
}

func (c *commandContext) withStore(fn func(*queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// newController assembles the pipeline with CLI-backed collaborators.
// The refine handler is nil when refinement is disabled.
func (c *commandContext) newController(logger *slog.Logger) (*pipeline.Controller, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	downloader := ytdlp.NewCLI(ytdlp.WithBinary(cfg.YtdlpBinary()))
	decoder := ffmpeg.NewCLI(ffmpeg.WithBinaries(cfg.FFmpegBinary(), cfg.FFprobeBinary()))
	transcriber := basicpitch.NewCLI(basicpitch.WithBinary(cfg.Transcription.BasicPitchBinary))

	var rendererOpts []musescore.Option
	if cfg.Export.MuseScoreBinary != "" {
		rendererOpts = append(rendererOpts, musescore.WithBinary(cfg.Export.MuseScoreBinary))
	}
	renderer := musescore.NewCLI(rendererOpts...)

	var refineHandler stage.Handler
	if cfg.Refinement.Enabled {
		refiner := llm.NewClient(llm.Config{
			APIKey:         cfg.Refinement.APIKey,
			BaseURL:        cfg.Refinement.BaseURL,
			Model:          cfg.Refinement.Model,
			Referer:        cfg.Refinement.Referer,
			Title:          cfg.Refinement.Title,
			TimeoutSeconds: cfg.Refinement.TimeoutSeconds,
		})
		refineHandler = refine.New(cfg, refiner)
	}

	return pipeline.New(cfg, logger, notifications.NewService(cfg),
		ingest.New(cfg, downloader, decoder),
		transcribe.New(cfg, transcriber),
		convert.New(cfg),
		refineHandler,
		export.New(cfg, renderer),
	), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
