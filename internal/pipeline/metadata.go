package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"clef/internal/ingest"
	"clef/internal/services"
)

// metadataVersion guards readers against future schema changes.
const metadataVersion = 1

// Metadata is the JSON document written alongside the exported notation.
// It captures every completed stage's metrics so partial progress stays
// diagnosable from the bundle alone.
type Metadata struct {
	Version      int           `json:"version"`
	ProjectID    string        `json:"project_id"`
	Source       string        `json:"source"`
	SourceType   string        `json:"source_type"`
	CreatedAt    time.Time     `json:"created_at"`
	Refined      bool          `json:"refined"`
	Warnings     []string      `json:"warnings,omitempty"`
	Stages       []StageRecord `json:"stages"`
	Notation     string        `json:"notation"`
	PDF          string        `json:"pdf,omitempty"`
	TotalSeconds float64       `json:"total_seconds"`
}

// MetadataPath returns the metadata file location for a project bundle.
func MetadataPath(outputDir, projectID string) string {
	return filepath.Join(outputDir, projectID+"_metadata.json")
}

func (c *Controller) writeMetadata(state *runState, req Request, result *FinalResult) (string, error) {
	sourceType := "file"
	if ingest.IsURL(req.Input) {
		sourceType = "url"
	}
	doc := Metadata{
		Version:      metadataVersion,
		ProjectID:    req.ProjectID,
		Source:       req.Input,
		SourceType:   sourceType,
		CreatedAt:    time.Now().UTC(),
		Refined:      result.Refined,
		Warnings:     result.Warnings,
		Stages:       state.records,
		Notation:     result.NotationPath,
		PDF:          result.PDFPath,
		TotalSeconds: time.Since(state.started).Seconds(),
	}
	encoded, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", services.Wrap(services.ErrSerialization, StageExport, "encode metadata",
			"marshal run metadata", err)
	}
	path := MetadataPath(state.outputDir, req.ProjectID)
	if err := os.WriteFile(path, append(encoded, '\n'), 0o644); err != nil {
		return "", services.Wrap(services.ErrRender, StageExport, "write metadata",
			fmt.Sprintf("write %s", path), err)
	}
	return path, nil
}

// ReadMetadata loads a previously written metadata document.
func ReadMetadata(path string) (Metadata, error) {
	var doc Metadata
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parse metadata %s: %w", path, err)
	}
	return doc, nil
}
