// Package deps checks the external binaries the pipeline shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"clef/internal/config"
	"clef/internal/services/musescore"
)

// Requirement defines an external dependency clef relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements builds the dependency list for the given configuration.
// MuseScore is only required when PDF generation is enabled.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Audio decoding and resampling",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Audio metadata probing",
		},
		{
			Name:        "yt-dlp",
			Command:     cfg.YtdlpBinary(),
			Description: "URL audio download",
			Optional:    true,
		},
		{
			Name:        "basic-pitch",
			Command:     cfg.Transcription.BasicPitchBinary,
			Description: "Pitch transcription model",
		},
	}
	musescoreReq := Requirement{
		Name:        "MuseScore",
		Command:     cfg.Export.MuseScoreBinary,
		Description: "PDF rendering",
		Optional:    !cfg.Export.GeneratePDF,
	}
	if musescoreReq.Command == "" {
		if binary, err := musescore.NewCLI().Binary(); err == nil {
			musescoreReq.Command = binary
		}
	}
	return append(reqs, musescoreReq)
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the names of unavailable non-optional
// dependencies.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status.Name)
		}
	}
	return missing
}
