package services

import (
	"errors"
	"strings"
)

// Sentinel markers for stage error classification. Stage adapters tag every
// failure with exactly one of these so the pipeline can report the
// originating stage and decide fallback behavior with errors.Is.
var (
	ErrIngest        = errors.New("ingest error")
	ErrTranscription = errors.New("transcription error")
	ErrConversion    = errors.New("conversion error")
	ErrRefinement    = errors.New("refinement error")
	ErrSerialization = errors.New("serialization error")
	ErrRender        = errors.New("render error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// StageError carries the marker plus human-readable stage context.
type StageError struct {
	Marker    error
	StageName string
	Operation string
	Message   string
	Err       error
}

// Wrap builds a StageError tagging err with the provided marker. The marker
// should be one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &StageError{
		Marker:    marker,
		StageName: strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Err:       err,
	}
}

func (e *StageError) Error() string {
	parts := make([]string, 0, 4)
	if e.Marker != nil {
		parts = append(parts, e.Marker.Error())
	}
	if detail := e.detail(); detail != "" {
		parts = append(parts, detail)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

func (e *StageError) detail() string {
	parts := make([]string, 0, 3)
	if e.StageName != "" {
		parts = append(parts, e.StageName)
	}
	if e.Operation != "" {
		parts = append(parts, e.Operation)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	return strings.Join(parts, ": ")
}

// Unwrap exposes both the classification marker and the underlying cause.
func (e *StageError) Unwrap() []error {
	targets := make([]error, 0, 2)
	if e.Marker != nil {
		targets = append(targets, e.Marker)
	}
	if e.Err != nil {
		targets = append(targets, e.Err)
	}
	return targets
}

// Stage returns the originating stage name recorded on err, if any.
func Stage(err error) string {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.StageName
	}
	return ""
}

// Message returns the most user-relevant message recorded on err. It prefers
// the StageError detail over the raw wrapped cause.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		if detail := stageErr.detail(); detail != "" {
			return detail
		}
	}
	return err.Error()
}

// Transient reports whether err is worth a bounded retry.
func Transient(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout)
}

// MarkerFor maps a stage name to its failure sentinel. Unknown stages map
// to ErrTransient.
func MarkerFor(stage string) error {
	switch strings.ToLower(strings.TrimSpace(stage)) {
	case "ingest":
		return ErrIngest
	case "transcribe", "transcription":
		return ErrTranscription
	case "convert", "conversion":
		return ErrConversion
	case "refine", "refinement":
		return ErrRefinement
	case "export", "render":
		return ErrRender
	default:
		return ErrTransient
	}
}
