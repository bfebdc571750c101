package queue

import (
	"strings"
	"time"

	"clef/internal/pipeline"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending      Status = "pending"
	StatusIngesting    Status = "ingesting"
	StatusTranscribing Status = "transcribing"
	StatusConverting   Status = "converting"
	StatusRefining     Status = "refining"
	StatusExporting    Status = "exporting"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusIngesting,
	StatusTranscribing,
	StatusConverting,
	StatusRefining,
	StatusExporting,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusIngesting:    {},
	StatusTranscribing: {},
	StatusConverting:   {},
	StatusRefining:     {},
	StatusExporting:    {},
}

// stageStatuses maps pipeline stage names to the processing status an
// item carries while that stage runs.
var stageStatuses = map[string]Status{
	pipeline.StageIngest:     StatusIngesting,
	pipeline.StageTranscribe: StatusTranscribing,
	pipeline.StageConvert:    StatusConverting,
	pipeline.StageRefine:     StatusRefining,
	pipeline.StageExport:     StatusExporting,
}

// StatusForStage returns the processing status for a pipeline stage name.
func StatusForStage(stage string) (Status, bool) {
	status, ok := stageStatuses[stage]
	return status, ok
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Completed  int
}

// Item represents a conversion project persisted in SQLite.
type Item struct {
	ID           int64
	ProjectID    string
	Source       string
	Instruction  string
	Status       Status
	ErrorMessage string
	NotationPath string
	PDFPath      string
	MetadataPath string
	QualityScore float64
	Refined      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight run.
func (i Item) IsProcessing() bool {
	return IsProcessingStatus(i.Status)
}

// IsProcessingStatus reports whether a status reflects an in-flight run.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether a status ends the item's lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// SetFailed marks the item as failed with the given error message.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
}

// SetCompleted records a successful run's outputs on the item.
func (i *Item) SetCompleted(result pipeline.FinalResult) {
	i.Status = StatusCompleted
	i.ErrorMessage = ""
	i.NotationPath = result.NotationPath
	i.PDFPath = result.PDFPath
	i.MetadataPath = result.MetadataPath
	i.Refined = result.Refined
	i.QualityScore = result.QualityScore()
}
