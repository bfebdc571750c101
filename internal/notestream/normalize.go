package notestream

import (
	"sort"
)

// Options controls the normalization steps. Each step toggles
// independently; the steps always apply in the same order regardless of
// which are enabled.
type Options struct {
	Quantize             bool
	Resolution           Beat
	RemoveRedundantRests bool
	ResolveOverlaps      bool
	InferKey             bool
	InferMeter           bool
	InsertDefaultTempo   bool
	DefaultTempoBPM      float64
}

// DefaultOptions enables every cleanup step at sixteenth-note resolution.
func DefaultOptions() Options {
	return Options{
		Quantize:             true,
		Resolution:           NewBeat(1, 4),
		RemoveRedundantRests: true,
		ResolveOverlaps:      true,
		InferKey:             true,
		InferMeter:           true,
		InsertDefaultTempo:   true,
		DefaultTempoBPM:      120,
	}
}

// Normalize cleans a raw event stream for serialization. Steps run in a
// fixed order: filter unrecognized kinds, quantize, drop redundant rests,
// resolve same-voice overlaps, then infer missing structural markers.
// Later steps assume the cleanup of earlier ones. The input is not
// modified. Malformed input (negative onset or duration, tempo NaN)
// fails with a MalformedEventError carrying the raw event's index.
func Normalize(raw Stream, opts Options) (Stream, error) {
	if err := validate(raw); err != nil {
		return Stream{}, err
	}

	events := filter(raw.Events)

	if opts.Quantize {
		events = quantize(events, opts.Resolution)
	}
	if opts.RemoveRedundantRests {
		events = removeRedundantRests(events, opts.Resolution)
	}

	sortEvents(events)

	if opts.ResolveOverlaps {
		events = resolveOverlaps(events)
	}

	stream := Stream{Events: events}
	stream = inferStructure(stream, opts)
	return stream, nil
}

func validate(raw Stream) error {
	for i, ev := range raw.Events {
		switch ev.Kind {
		case KindNote, KindRest:
			if ev.Onset.Sign() < 0 {
				return &MalformedEventError{Index: i, Reason: "negative onset"}
			}
			if ev.Duration.Sign() < 0 {
				return &MalformedEventError{Index: i, Reason: "negative duration"}
			}
			if ev.Kind == KindNote && (ev.Pitch < 0 || ev.Pitch > 127) {
				return &MalformedEventError{Index: i, Reason: "pitch outside MIDI range"}
			}
		case KindTempo:
			if ev.BPM != ev.BPM || ev.BPM <= 0 {
				return &MalformedEventError{Index: i, Reason: "non-positive tempo"}
			}
		}
	}
	return nil
}

// filter keeps notes, rests, and structural markers, dropping anything
// with an unrecognized kind.
func filter(events []Event) []Event {
	kept := make([]Event, 0, len(events))
	for _, ev := range events {
		switch ev.Kind {
		case KindNote, KindRest, KindKeySignature, KindTimeSignature, KindTempo:
			kept = append(kept, ev)
		}
	}
	return kept
}

// quantize snaps onsets and durations to the nearest resolution multiple.
// A sounding note is never quantized to zero length; it floors at one
// resolution unit.
func quantize(events []Event, resolution Beat) []Event {
	if resolution.Sign() <= 0 {
		return events
	}
	out := make([]Event, len(events))
	for i, ev := range events {
		ev.Onset = ev.Onset.Quantize(resolution)
		if ev.Kind == KindNote || ev.Kind == KindRest {
			ev.Duration = ev.Duration.Quantize(resolution)
			if ev.Kind == KindNote && ev.Duration.Sign() <= 0 {
				ev.Duration = resolution
			}
		}
		out[i] = ev
	}
	return out
}

// removeRedundantRests drops rests no longer than one quantization unit.
// Such rests carry no notational information once the surrounding notes
// are snapped to the same grid.
func removeRedundantRests(events []Event, resolution Beat) []Event {
	if resolution.Sign() <= 0 {
		resolution = NewBeat(1, 4)
	}
	kept := events[:0:0]
	for _, ev := range events {
		if ev.Kind == KindRest && ev.Duration.Cmp(resolution) <= 0 {
			continue
		}
		kept = append(kept, ev)
	}
	return kept
}

func sortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if c := events[i].Onset.Cmp(events[j].Onset); c != 0 {
			return c < 0
		}
		// Markers sort ahead of sounding events at the same onset.
		return events[i].IsMarker() && !events[j].IsMarker()
	})
}

// resolveOverlaps drops any note whose interval intersects an already
// accepted note in the same voice. Events must be in onset order; the
// earlier onset always wins, and at equal onsets the earlier stream
// position wins. Rests and notes in different voices never conflict.
func resolveOverlaps(events []Event) []Event {
	type interval struct {
		start Beat
		end   Beat
	}
	sounding := make(map[int][]interval)
	kept := events[:0:0]
	for _, ev := range events {
		if ev.Kind != KindNote {
			kept = append(kept, ev)
			continue
		}
		end := ev.End()
		conflict := false
		for _, iv := range sounding[ev.Voice] {
			if ev.Onset.Less(iv.end) && iv.start.Less(end) {
				conflict = true
				break
			}
		}
		if conflict {
			continue
		}
		sounding[ev.Voice] = append(sounding[ev.Voice], interval{start: ev.Onset, end: end})
		kept = append(kept, ev)
	}
	return kept
}

// inferStructure inserts missing structural markers at the head of the
// stream: a key signature derived from the pitch-class histogram, a time
// signature derived from downbeat alignment, and the default tempo.
func inferStructure(stream Stream, opts Options) Stream {
	var head []Event

	if opts.InferKey && !stream.HasMarker(KindKeySignature) {
		if key, ok := inferKeySignature(stream); ok {
			head = append(head, key)
		}
	}
	if opts.InferMeter && !stream.HasMarker(KindTimeSignature) {
		if meter, ok := inferTimeSignature(stream); ok {
			head = append(head, meter)
		}
	}
	if opts.InsertDefaultTempo && !stream.HasMarker(KindTempo) {
		bpm := opts.DefaultTempoBPM
		if bpm <= 0 {
			bpm = 120
		}
		head = append(head, Tempo(Beat{}, bpm))
	}

	if len(head) == 0 {
		return stream
	}
	events := make([]Event, 0, len(head)+len(stream.Events))
	events = append(events, head...)
	events = append(events, stream.Events...)
	return Stream{Events: events}
}
