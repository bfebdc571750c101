package midifile

import (
	"encoding/binary"
	"errors"
	"testing"

	"clef/internal/notestream"
)

func buildSMF(t *testing.T, division uint16, trackBody []byte) []byte {
	t.Helper()
	var out []byte
	out = append(out, 'M', 'T', 'h', 'd')
	out = binary.BigEndian.AppendUint32(out, 6)
	out = binary.BigEndian.AppendUint16(out, 0) // format 0
	out = binary.BigEndian.AppendUint16(out, 1)
	out = binary.BigEndian.AppendUint16(out, division)
	out = append(out, 'M', 'T', 'r', 'k')
	out = binary.BigEndian.AppendUint32(out, uint32(len(trackBody)))
	out = append(out, trackBody...)
	return out
}

func TestDecodeBasicFile(t *testing.T) {
	track := []byte{
		0x00, 0xff, 0x51, 0x03, 0x07, 0xa1, 0x20, // tempo 500000us = 120 BPM
		0x00, 0xff, 0x58, 0x04, 0x04, 0x02, 0x18, 0x08, // 4/4
		0x00, 0xff, 0x59, 0x02, 0x02, 0x00, // D major, 2 sharps
		0x00, 0x90, 60, 100, // C4 on at tick 0
		0x83, 0x60, 0x80, 60, 0, // C4 off after 480 ticks
		0x00, 0x90, 62, 90, // D4 on at tick 480
		0x83, 0x60, 0x80, 62, 0, // D4 off after 480 ticks
		0x00, 0xff, 0x2f, 0x00, // end of track
	}

	file, err := Decode(buildSMF(t, 480, track))
	if err != nil {
		t.Fatal(err)
	}
	if file.Division != 480 {
		t.Fatalf("division = %d, want 480", file.Division)
	}
	if len(file.Tracks) != 1 {
		t.Fatalf("tracks = %d, want 1", len(file.Tracks))
	}
	tr := file.Tracks[0]
	if len(tr.Notes) != 2 {
		t.Fatalf("notes = %d, want 2", len(tr.Notes))
	}
	if tr.Notes[0].Pitch != 60 || tr.Notes[0].DurationTicks != 480 {
		t.Fatalf("first note = %+v", tr.Notes[0])
	}
	if tr.Notes[1].OnsetTicks != 480 {
		t.Fatalf("second note onset = %d, want 480", tr.Notes[1].OnsetTicks)
	}
	if len(tr.Tempos) != 1 || tr.Tempos[0].BPM != 120 {
		t.Fatalf("tempos = %+v", tr.Tempos)
	}
	if len(tr.Meters) != 1 || tr.Meters[0].Beats != 4 || tr.Meters[0].BeatUnit != 4 {
		t.Fatalf("meters = %+v", tr.Meters)
	}
	if len(tr.Keys) != 1 || tr.Keys[0].Fifths != 2 || tr.Keys[0].Minor {
		t.Fatalf("keys = %+v", tr.Keys)
	}
	if file.NoteCount() != 2 {
		t.Fatalf("note count = %d, want 2", file.NoteCount())
	}
}

func TestDecodeRunningStatus(t *testing.T) {
	track := []byte{
		0x00, 0x90, 60, 100, // explicit status
		0x60, 62, 100, // running status note-on 96 ticks later
		0x60, 60, 0, // running status vel-0 closes C4
		0x60, 62, 0, // closes D4
		0x00, 0xff, 0x2f, 0x00,
	}
	file, err := Decode(buildSMF(t, 96, track))
	if err != nil {
		t.Fatal(err)
	}
	notes := file.Tracks[0].Notes
	if len(notes) != 2 {
		t.Fatalf("notes = %d, want 2", len(notes))
	}
	if notes[0].Pitch != 60 || notes[0].OnsetTicks != 0 || notes[0].DurationTicks != 192 {
		t.Fatalf("first note = %+v", notes[0])
	}
	if notes[1].Pitch != 62 || notes[1].OnsetTicks != 96 || notes[1].DurationTicks != 192 {
		t.Fatalf("second note = %+v", notes[1])
	}
}

func TestDecodeClosesDanglingNotes(t *testing.T) {
	track := []byte{
		0x00, 0x90, 60, 100,
		0x81, 0x40, 0xff, 0x2f, 0x00, // end of track 192 ticks later, no note-off
	}
	file, err := Decode(buildSMF(t, 96, track))
	if err != nil {
		t.Fatal(err)
	}
	notes := file.Tracks[0].Notes
	if len(notes) != 1 || notes[0].DurationTicks != 192 {
		t.Fatalf("dangling note not closed at track end: %+v", notes)
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	if _, err := Decode([]byte("not midi data")); !errors.Is(err, ErrNotMIDI) {
		t.Fatalf("expected ErrNotMIDI, got %v", err)
	}
	valid := buildSMF(t, 480, []byte{0x00, 0xff, 0x2f, 0x00})
	if _, err := Decode(valid[:20]); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}

	smpte := buildSMF(t, 480, []byte{0x00, 0xff, 0x2f, 0x00})
	binary.BigEndian.PutUint16(smpte[12:14], 0xe250) // SMPTE division flag
	if _, err := Decode(smpte); !errors.Is(err, ErrSMPTETiming) {
		t.Fatalf("expected ErrSMPTETiming, got %v", err)
	}
}

func TestStreamConversion(t *testing.T) {
	track := []byte{
		0x00, 0xff, 0x58, 0x04, 0x03, 0x02, 0x18, 0x08, // 3/4
		0x00, 0x90, 64, 80,
		0x83, 0x60, 0x80, 64, 0, // one quarter note at division 480
		0x00, 0xff, 0x2f, 0x00,
	}
	file, err := Decode(buildSMF(t, 480, track))
	if err != nil {
		t.Fatal(err)
	}
	stream := file.Stream()
	if stream.NoteCount() != 1 {
		t.Fatalf("stream notes = %d, want 1", stream.NoteCount())
	}
	var note *notestream.Event
	for i := range stream.Events {
		if stream.Events[i].Kind == notestream.KindNote {
			note = &stream.Events[i]
		}
	}
	if note.Duration.Cmp(notestream.BeatFromInt(1)) != 0 {
		t.Fatalf("note duration = %s, want 1 quarter", note.Duration)
	}
	if !stream.HasMarker(notestream.KindTimeSignature) {
		t.Fatal("time signature marker missing from stream")
	}
}
