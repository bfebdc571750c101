// Package musicxml serializes a normalized note stream as a partwise
// MusicXML 3.1 document and validates documents coming back from the
// refinement service.
package musicxml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"clef/internal/notestream"
)

const (
	xmlHeader = xml.Header
	doctype   = "<!DOCTYPE score-partwise PUBLIC \"-//Recordare//DTD MusicXML 3.1 Partwise//EN\" \"http://www.musicxml.org/dtds/partwise.dtd\">\n"
)

var ErrNoNotes = errors.New("document contains no notes")

type scorePartwise struct {
	XMLName       xml.Name    `xml:"score-partwise"`
	Version       string      `xml:"version,attr"`
	MovementTitle string      `xml:"movement-title,omitempty"`
	PartList      partList    `xml:"part-list"`
	Parts         []scorePart `xml:"part"`
}

type partList struct {
	ScoreParts []scorePartDecl `xml:"score-part"`
}

type scorePartDecl struct {
	ID       string `xml:"id,attr"`
	PartName string `xml:"part-name"`
}

type scorePart struct {
	ID       string    `xml:"id,attr"`
	Measures []measure `xml:"measure"`
}

type measure struct {
	Number     int         `xml:"number,attr"`
	Attributes *attributes `xml:"attributes,omitempty"`
	Direction  *direction  `xml:"direction,omitempty"`
	Notes      []note      `xml:"note"`
}

type attributes struct {
	Divisions int       `xml:"divisions,omitempty"`
	Key       *keyElem  `xml:"key,omitempty"`
	Time      *timeElem `xml:"time,omitempty"`
}

type keyElem struct {
	Fifths int    `xml:"fifths"`
	Mode   string `xml:"mode,omitempty"`
}

type timeElem struct {
	Beats    int `xml:"beats"`
	BeatType int `xml:"beat-type"`
}

type direction struct {
	Placement string    `xml:"placement,attr,omitempty"`
	Sound     soundElem `xml:"sound"`
}

type soundElem struct {
	Tempo float64 `xml:"tempo,attr"`
}

type note struct {
	Rest     *struct{} `xml:"rest,omitempty"`
	Pitch    *pitch    `xml:"pitch,omitempty"`
	Duration int       `xml:"duration"`
	Voice    int       `xml:"voice,omitempty"`
	Type     string    `xml:"type,omitempty"`
}

type pitch struct {
	Step   string `xml:"step"`
	Alter  int    `xml:"alter,omitempty"`
	Octave int    `xml:"octave"`
}

// sharpNames and flatNames spell the twelve pitch classes; the key
// signature decides which spelling a document uses.
var (
	sharpNames = [12]struct {
		step  string
		alter int
	}{{"C", 0}, {"C", 1}, {"D", 0}, {"D", 1}, {"E", 0}, {"F", 0}, {"F", 1}, {"G", 0}, {"G", 1}, {"A", 0}, {"A", 1}, {"B", 0}}
	flatNames = [12]struct {
		step  string
		alter int
	}{{"C", 0}, {"D", -1}, {"D", 0}, {"E", -1}, {"E", 0}, {"F", 0}, {"G", -1}, {"G", 0}, {"A", -1}, {"A", 0}, {"B", -1}, {"B", 0}}
)

// WriteFile serializes stream to path, creating or truncating the file.
func WriteFile(path string, stream notestream.Stream, title string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, stream, title); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write serializes stream as a partwise MusicXML document. Each voice
// becomes its own part. Gaps between notes are filled with rests and a
// note crossing a barline is clipped at the measure boundary. An empty
// stream still produces one part with a single empty measure so the
// document stays loadable by notation tools.
func Write(w io.Writer, stream notestream.Stream, title string) error {
	doc := build(stream, title)
	if _, err := io.WriteString(w, xmlHeader); err != nil {
		return err
	}
	if _, err := io.WriteString(w, doctype); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func build(stream notestream.Stream, title string) scorePartwise {
	key, meter, tempo := structuralMarkers(stream)
	divisions := chooseDivisions(stream)
	measureQuarters := notestream.BeatFromInt(4)
	if meter != nil && meter.Beats > 0 && meter.BeatUnit > 0 {
		measureQuarters = notestream.NewBeat(int64(meter.Beats)*4, int64(meter.BeatUnit))
	}

	voices := splitVoices(stream)
	doc := scorePartwise{Version: "3.1", MovementTitle: title}
	for i, voice := range voices {
		id := fmt.Sprintf("P%d", i+1)
		doc.PartList.ScoreParts = append(doc.PartList.ScoreParts, scorePartDecl{
			ID:       id,
			PartName: fmt.Sprintf("Voice %d", i+1),
		})
		part := scorePart{ID: id}
		part.Measures = buildMeasures(voice, divisions, measureQuarters, key, meter, tempo, i == 0)
		doc.Parts = append(doc.Parts, part)
	}
	return doc
}

func structuralMarkers(stream notestream.Stream) (*notestream.Event, *notestream.Event, *notestream.Event) {
	var key, meter, tempo *notestream.Event
	for i := range stream.Events {
		ev := &stream.Events[i]
		switch ev.Kind {
		case notestream.KindKeySignature:
			if key == nil {
				key = ev
			}
		case notestream.KindTimeSignature:
			if meter == nil {
				meter = ev
			}
		case notestream.KindTempo:
			if tempo == nil {
				tempo = ev
			}
		}
	}
	return key, meter, tempo
}

// chooseDivisions picks the quarter-note subdivision count as the least
// common multiple of every onset and duration denominator, capped to keep
// duration integers sane.
func chooseDivisions(stream notestream.Stream) int {
	divisions := int64(1)
	for _, ev := range stream.Events {
		if ev.IsMarker() {
			continue
		}
		divisions = lcm(divisions, ev.Onset.Den())
		divisions = lcm(divisions, ev.Duration.Den())
		if divisions > 960 {
			return 960
		}
	}
	return int(divisions)
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	return a / gcd(a, b) * b
}

func splitVoices(stream notestream.Stream) [][]notestream.Event {
	byVoice := map[int][]notestream.Event{}
	for _, ev := range stream.Events {
		if ev.IsMarker() {
			continue
		}
		byVoice[ev.Voice] = append(byVoice[ev.Voice], ev)
	}
	ids := make([]int, 0, len(byVoice))
	for id := range byVoice {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	voices := make([][]notestream.Event, 0, len(byVoice))
	for _, id := range ids {
		voices = append(voices, byVoice[id])
	}
	if len(voices) == 0 {
		voices = append(voices, nil)
	}
	return voices
}

func buildMeasures(events []notestream.Event, divisions int, measureQuarters notestream.Beat, key, meter, tempo *notestream.Event, first bool) []measure {
	var measures []measure
	cursor := notestream.Beat{}
	measureEnd := measureQuarters
	current := newMeasure(1, divisions, key, meter, tempo, first)

	flush := func() {
		measures = append(measures, current)
		current = measure{Number: len(measures) + 1}
		measureEnd = measureEnd.Add(measureQuarters)
	}

	toTicks := func(b notestream.Beat) int {
		return int(b.Num() * int64(divisions) / b.Den())
	}

	for _, ev := range events {
		if ev.Onset.Less(cursor) {
			continue
		}
		// Advance to the measure holding this onset, padding with rests.
		for !ev.Onset.Less(measureEnd) {
			if gap := measureEnd.Sub(cursor); gap.Sign() > 0 {
				current.Notes = append(current.Notes, restNote(toTicks(gap)))
			}
			cursor = measureEnd
			flush()
		}
		if gap := ev.Onset.Sub(cursor); gap.Sign() > 0 {
			current.Notes = append(current.Notes, restNote(toTicks(gap)))
			cursor = ev.Onset
		}
		duration := ev.Duration
		if measureEnd.Less(ev.End()) {
			duration = measureEnd.Sub(ev.Onset)
		}
		if duration.Sign() <= 0 {
			continue
		}
		switch ev.Kind {
		case notestream.KindNote:
			current.Notes = append(current.Notes, pitchedNote(ev, toTicks(duration), key))
		case notestream.KindRest:
			current.Notes = append(current.Notes, restNote(toTicks(duration)))
		}
		cursor = cursor.Add(duration)
	}

	if len(current.Notes) > 0 || len(measures) == 0 {
		if gap := measureEnd.Sub(cursor); gap.Sign() > 0 && len(current.Notes) > 0 {
			current.Notes = append(current.Notes, restNote(toTicks(gap)))
		}
		measures = append(measures, current)
	}
	return measures
}

func newMeasure(number, divisions int, key, meter, tempo *notestream.Event, first bool) measure {
	m := measure{Number: number}
	attrs := &attributes{Divisions: divisions}
	if key != nil {
		mode := "major"
		if key.Minor {
			mode = "minor"
		}
		attrs.Key = &keyElem{Fifths: key.Fifths, Mode: mode}
	}
	if meter != nil {
		attrs.Time = &timeElem{Beats: meter.Beats, BeatType: meter.BeatUnit}
	}
	m.Attributes = attrs
	if first && tempo != nil {
		m.Direction = &direction{Placement: "above", Sound: soundElem{Tempo: tempo.BPM}}
	}
	return m
}

func restNote(ticks int) note {
	return note{Rest: &struct{}{}, Duration: ticks}
}

func pitchedNote(ev notestream.Event, ticks int, key *notestream.Event) note {
	names := sharpNames
	if key != nil && key.Fifths < 0 {
		names = flatNames
	}
	spelled := names[ev.Pitch%12]
	return note{
		Pitch: &pitch{
			Step:   spelled.step,
			Alter:  spelled.alter,
			Octave: ev.Pitch/12 - 1,
		},
		Duration: ticks,
		Voice:    ev.Voice + 1,
	}
}

// Validate parses content as a partwise MusicXML document and requires at
// least one pitched note. The refinement stage uses this to reject
// malformed model output before it can replace a good artifact.
func Validate(content []byte) error {
	var doc scorePartwise
	if err := xml.Unmarshal(content, &doc); err != nil {
		return fmt.Errorf("parse musicxml: %w", err)
	}
	for _, part := range doc.Parts {
		for _, m := range part.Measures {
			for _, n := range m.Notes {
				if n.Pitch != nil {
					return nil
				}
			}
		}
	}
	return ErrNoNotes
}
