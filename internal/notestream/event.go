package notestream

import "fmt"

// Kind identifies the closed set of event variants a stream may carry.
// Anything outside this set is dropped during normalization.
type Kind int

const (
	KindUnknown Kind = iota
	KindNote
	KindRest
	KindKeySignature
	KindTimeSignature
	KindTempo
)

func (k Kind) String() string {
	switch k {
	case KindNote:
		return "note"
	case KindRest:
		return "rest"
	case KindKeySignature:
		return "key_signature"
	case KindTimeSignature:
		return "time_signature"
	case KindTempo:
		return "tempo"
	default:
		return "unknown"
	}
}

// Event is one musical event anchored at an onset in quarter-note units.
// The Kind field selects which of the remaining fields are meaningful:
// notes use Pitch, Duration, and Voice; rests use Duration and Voice;
// key signatures use Fifths and Minor; time signatures use Beats and
// BeatUnit; tempo markers use BPM.
type Event struct {
	Kind     Kind
	Onset    Beat
	Duration Beat
	Pitch    int // MIDI note number, 0-127
	Voice    int
	Fifths   int // key signature, -7..7 on the circle of fifths
	Minor    bool
	Beats    int // time signature numerator
	BeatUnit int // time signature denominator
	BPM      float64
}

// Note builds a sounding note event.
func Note(onset, duration Beat, pitch, voice int) Event {
	return Event{Kind: KindNote, Onset: onset, Duration: duration, Pitch: pitch, Voice: voice}
}

// Rest builds a silent event.
func Rest(onset, duration Beat, voice int) Event {
	return Event{Kind: KindRest, Onset: onset, Duration: duration, Voice: voice}
}

// KeySignature builds a key marker at onset.
func KeySignature(onset Beat, fifths int, minor bool) Event {
	return Event{Kind: KindKeySignature, Onset: onset, Fifths: fifths, Minor: minor}
}

// TimeSignature builds a meter marker at onset.
func TimeSignature(onset Beat, beats, beatUnit int) Event {
	return Event{Kind: KindTimeSignature, Onset: onset, Beats: beats, BeatUnit: beatUnit}
}

// Tempo builds a tempo marker at onset.
func Tempo(onset Beat, bpm float64) Event {
	return Event{Kind: KindTempo, Onset: onset, BPM: bpm}
}

// End returns the event's offset, onset plus duration.
func (e Event) End() Beat {
	return e.Onset.Add(e.Duration)
}

// IsMarker reports whether the event is a structural marker rather than a
// sounding or silent event.
func (e Event) IsMarker() bool {
	switch e.Kind {
	case KindKeySignature, KindTimeSignature, KindTempo:
		return true
	default:
		return false
	}
}

// Stream is an ordered sequence of events. After normalization, events
// within one voice appear in non-decreasing onset order.
type Stream struct {
	Events []Event
}

// Notes returns only the sounding notes, in stream order.
func (s Stream) Notes() []Event {
	notes := make([]Event, 0, len(s.Events))
	for _, ev := range s.Events {
		if ev.Kind == KindNote {
			notes = append(notes, ev)
		}
	}
	return notes
}

// NoteCount returns the number of sounding notes in the stream.
func (s Stream) NoteCount() int {
	count := 0
	for _, ev := range s.Events {
		if ev.Kind == KindNote {
			count++
		}
	}
	return count
}

// Span returns the quarter-note distance covered by sounding events, from
// the earliest onset to the latest offset. A stream with no notes or rests
// spans zero.
func (s Stream) Span() Beat {
	var start, end Beat
	seen := false
	for _, ev := range s.Events {
		if ev.IsMarker() {
			continue
		}
		if !seen || ev.Onset.Less(start) {
			start = ev.Onset
		}
		if !seen || end.Less(ev.End()) {
			end = ev.End()
		}
		seen = true
	}
	if !seen {
		return Beat{}
	}
	return end.Sub(start)
}

// HasMarker reports whether any event of the given marker kind is present.
func (s Stream) HasMarker(kind Kind) bool {
	for _, ev := range s.Events {
		if ev.Kind == kind {
			return true
		}
	}
	return false
}

// MalformedEventError reports an input event that cannot be normalized.
type MalformedEventError struct {
	Index  int
	Reason string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed event at index %d: %s", e.Index, e.Reason)
}
