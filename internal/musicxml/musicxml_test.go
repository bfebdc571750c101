package musicxml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
	"testing"

	"clef/internal/notestream"
)

func sampleStream() notestream.Stream {
	return notestream.Stream{Events: []notestream.Event{
		notestream.KeySignature(notestream.Beat{}, 0, false),
		notestream.TimeSignature(notestream.Beat{}, 4, 4),
		notestream.Tempo(notestream.Beat{}, 120),
		notestream.Note(notestream.Beat{}, notestream.BeatFromInt(1), 60, 0),
		notestream.Note(notestream.BeatFromInt(1), notestream.BeatFromInt(1), 64, 0),
		notestream.Note(notestream.BeatFromInt(2), notestream.BeatFromInt(2), 67, 0),
	}}
}

func TestWriteRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleStream(), "Test Piece"); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, xml.Header) {
		t.Fatal("missing XML declaration")
	}
	if !strings.Contains(out, "DOCTYPE score-partwise") {
		t.Fatal("missing doctype")
	}

	var doc scorePartwise
	if err := xml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Version != "3.1" {
		t.Fatalf("version = %q", doc.Version)
	}
	if doc.MovementTitle != "Test Piece" {
		t.Fatalf("title = %q", doc.MovementTitle)
	}
	if len(doc.Parts) != 1 {
		t.Fatalf("parts = %d, want 1", len(doc.Parts))
	}
	first := doc.Parts[0].Measures[0]
	if first.Attributes == nil || first.Attributes.Time == nil {
		t.Fatal("first measure missing attributes")
	}
	if first.Attributes.Time.Beats != 4 || first.Attributes.Time.BeatType != 4 {
		t.Fatalf("time = %+v", first.Attributes.Time)
	}
	if first.Attributes.Key == nil || first.Attributes.Key.Fifths != 0 {
		t.Fatalf("key = %+v", first.Attributes.Key)
	}
	if first.Direction == nil || first.Direction.Sound.Tempo != 120 {
		t.Fatal("tempo direction missing")
	}

	notes := 0
	for _, m := range doc.Parts[0].Measures {
		for _, n := range m.Notes {
			if n.Pitch != nil {
				notes++
			}
		}
	}
	if notes != 3 {
		t.Fatalf("pitched notes = %d, want 3", notes)
	}
}

func TestWriteFillsGapsWithRests(t *testing.T) {
	stream := notestream.Stream{Events: []notestream.Event{
		notestream.TimeSignature(notestream.Beat{}, 4, 4),
		notestream.Note(notestream.BeatFromInt(2), notestream.BeatFromInt(1), 60, 0),
	}}
	var buf bytes.Buffer
	if err := Write(&buf, stream, ""); err != nil {
		t.Fatal(err)
	}
	var doc scorePartwise
	if err := xml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	first := doc.Parts[0].Measures[0]
	if len(first.Notes) == 0 || first.Notes[0].Rest == nil {
		t.Fatal("expected a leading rest before the first note")
	}
}

func TestWriteEmptyStream(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, notestream.Stream{}, ""); err != nil {
		t.Fatal(err)
	}
	var doc scorePartwise
	if err := xml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Parts) != 1 || len(doc.Parts[0].Measures) != 1 {
		t.Fatalf("empty stream should produce one part with one measure, got %d parts", len(doc.Parts))
	}
}

func TestWriteSplitsVoicesIntoParts(t *testing.T) {
	stream := notestream.Stream{Events: []notestream.Event{
		notestream.Note(notestream.Beat{}, notestream.BeatFromInt(1), 48, 0),
		notestream.Note(notestream.Beat{}, notestream.BeatFromInt(1), 72, 1),
	}}
	var buf bytes.Buffer
	if err := Write(&buf, stream, ""); err != nil {
		t.Fatal(err)
	}
	var doc scorePartwise
	if err := xml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Parts) != 2 {
		t.Fatalf("parts = %d, want 2", len(doc.Parts))
	}
}

func TestFlatKeysSpellWithFlats(t *testing.T) {
	stream := notestream.Stream{Events: []notestream.Event{
		notestream.KeySignature(notestream.Beat{}, -2, false),
		notestream.Note(notestream.Beat{}, notestream.BeatFromInt(1), 63, 0), // E flat
	}}
	var buf bytes.Buffer
	if err := Write(&buf, stream, ""); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "<step>E</step>") || !strings.Contains(out, "<alter>-1</alter>") {
		t.Fatalf("expected E-flat spelling, got:\n%s", out)
	}
}

func TestValidate(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleStream(), ""); err != nil {
		t.Fatal(err)
	}
	if err := Validate(buf.Bytes()); err != nil {
		t.Fatalf("valid document rejected: %v", err)
	}

	if err := Validate([]byte("this is not xml at all")); err == nil {
		t.Fatal("expected parse error for non-XML content")
	}

	empty := `<?xml version="1.0"?><score-partwise version="3.1"><part-list/><part id="P1"><measure number="1"/></part></score-partwise>`
	if err := Validate([]byte(empty)); !errors.Is(err, ErrNoNotes) {
		t.Fatalf("expected ErrNoNotes, got %v", err)
	}
}
