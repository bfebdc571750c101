// Package midifile decodes Standard MIDI Files into a note stream. It
// covers the subset emitted by pitch-transcription tools: format 0/1
// files with metrical division, note on/off pairs, and tempo, key, and
// time-signature meta events. Everything else is skipped.
package midifile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"clef/internal/notestream"
)

var (
	ErrNotMIDI      = errors.New("not a standard MIDI file")
	ErrTruncated    = errors.New("truncated MIDI data")
	ErrSMPTETiming  = errors.New("SMPTE time division is not supported")
	errTrackEnded   = errors.New("track ended")
	errUnfinishedVL = errors.New("unterminated variable-length quantity")
)

// File is a decoded Standard MIDI File.
type File struct {
	Format   int
	Division int // ticks per quarter note
	Tracks   []Track
}

// Track holds one MTrk chunk's decoded events in tick order.
type Track struct {
	Notes      []TrackNote
	Tempos     []TempoChange
	Keys       []KeyChange
	Meters     []MeterChange
	EventCount int // raw channel events seen, including ones not kept
}

// TrackNote is a matched note-on/note-off pair.
type TrackNote struct {
	OnsetTicks    int64
	DurationTicks int64
	Pitch         int
	Channel       int
	Velocity      int
}

type TempoChange struct {
	Ticks int64
	BPM   float64
}

type KeyChange struct {
	Ticks  int64
	Fifths int
	Minor  bool
}

type MeterChange struct {
	Ticks    int64
	Beats    int
	BeatUnit int
}

// DecodeFile reads and decodes the file at path.
func DecodeFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode parses raw SMF bytes.
func Decode(data []byte) (*File, error) {
	if len(data) < 14 || string(data[:4]) != "MThd" {
		return nil, ErrNotMIDI
	}
	headerLen := binary.BigEndian.Uint32(data[4:8])
	if headerLen < 6 || len(data) < int(8+headerLen) {
		return nil, ErrTruncated
	}
	format := int(binary.BigEndian.Uint16(data[8:10]))
	trackCount := int(binary.BigEndian.Uint16(data[10:12]))
	division := int(int16(binary.BigEndian.Uint16(data[12:14])))
	if division <= 0 {
		return nil, ErrSMPTETiming
	}

	file := &File{Format: format, Division: division}
	rest := data[8+headerLen:]
	for t := 0; t < trackCount; t++ {
		if len(rest) < 8 {
			return nil, fmt.Errorf("%w: expected %d tracks, found %d", ErrTruncated, trackCount, t)
		}
		if string(rest[:4]) != "MTrk" {
			// Unknown chunk, skip it.
			chunkLen := binary.BigEndian.Uint32(rest[4:8])
			if len(rest) < int(8+chunkLen) {
				return nil, ErrTruncated
			}
			rest = rest[8+chunkLen:]
			t--
			continue
		}
		chunkLen := binary.BigEndian.Uint32(rest[4:8])
		if len(rest) < int(8+chunkLen) {
			return nil, ErrTruncated
		}
		track, err := decodeTrack(rest[8 : 8+chunkLen])
		if err != nil {
			return nil, fmt.Errorf("track %d: %w", t, err)
		}
		file.Tracks = append(file.Tracks, track)
		rest = rest[8+chunkLen:]
	}
	return file, nil
}

type trackReader struct {
	data []byte
	pos  int
}

func (r *trackReader) byte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, ErrTruncated
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *trackReader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, ErrTruncated
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *trackReader) varint() (int64, error) {
	var value int64
	for i := 0; i < 4; i++ {
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		value = value<<7 | int64(b&0x7f)
		if b&0x80 == 0 {
			return value, nil
		}
	}
	return 0, errUnfinishedVL
}

type pendingNote struct {
	ticks    int64
	velocity int
}

func decodeTrack(data []byte) (Track, error) {
	r := &trackReader{data: data}
	track := Track{}
	var ticks int64
	var status byte
	// channel<<8 | pitch → onset of the sounding note
	pending := map[int]pendingNote{}

	closeNote := func(channel, pitch int, offTicks int64) {
		key := channel<<8 | pitch
		start, ok := pending[key]
		if !ok {
			return
		}
		delete(pending, key)
		duration := offTicks - start.ticks
		if duration < 0 {
			duration = 0
		}
		track.Notes = append(track.Notes, TrackNote{
			OnsetTicks:    start.ticks,
			DurationTicks: duration,
			Pitch:         pitch,
			Channel:       channel,
			Velocity:      start.velocity,
		})
	}

	for r.pos < len(r.data) {
		delta, err := r.varint()
		if err != nil {
			return Track{}, err
		}
		ticks += delta

		b, err := r.byte()
		if err != nil {
			return Track{}, err
		}
		if b&0x80 != 0 {
			status = b
		} else {
			// Running status; the byte is the first data byte.
			if status == 0 {
				return Track{}, fmt.Errorf("data byte %#x before any status", b)
			}
			r.pos--
		}

		switch {
		case status == 0xff:
			if err := decodeMeta(r, &track, ticks); err != nil {
				if errors.Is(err, errTrackEnded) {
					for key := range pending {
						closeNote(key>>8, key&0xff, ticks)
					}
					return track, nil
				}
				return Track{}, err
			}
		case status == 0xf0 || status == 0xf7:
			length, err := r.varint()
			if err != nil {
				return Track{}, err
			}
			if _, err := r.take(int(length)); err != nil {
				return Track{}, err
			}
		default:
			channel := int(status & 0x0f)
			kind := status & 0xf0
			dataLen := 2
			if kind == 0xc0 || kind == 0xd0 {
				dataLen = 1
			}
			payload, err := r.take(dataLen)
			if err != nil {
				return Track{}, err
			}
			track.EventCount++
			switch kind {
			case 0x90:
				pitch, velocity := int(payload[0]), int(payload[1])
				if velocity == 0 {
					closeNote(channel, pitch, ticks)
				} else {
					// A retriggered pitch ends the sounding instance.
					closeNote(channel, pitch, ticks)
					pending[channel<<8|pitch] = pendingNote{ticks: ticks, velocity: velocity}
				}
			case 0x80:
				closeNote(channel, int(payload[0]), ticks)
			}
		}
	}

	for key := range pending {
		closeNote(key>>8, key&0xff, ticks)
	}
	return track, nil
}

func decodeMeta(r *trackReader, track *Track, ticks int64) error {
	metaType, err := r.byte()
	if err != nil {
		return err
	}
	length, err := r.varint()
	if err != nil {
		return err
	}
	payload, err := r.take(int(length))
	if err != nil {
		return err
	}
	switch metaType {
	case 0x2f:
		return errTrackEnded
	case 0x51:
		if len(payload) == 3 {
			usPerQuarter := int64(payload[0])<<16 | int64(payload[1])<<8 | int64(payload[2])
			if usPerQuarter > 0 {
				track.Tempos = append(track.Tempos, TempoChange{
					Ticks: ticks,
					BPM:   60_000_000 / float64(usPerQuarter),
				})
			}
		}
	case 0x58:
		if len(payload) >= 2 {
			track.Meters = append(track.Meters, MeterChange{
				Ticks:    ticks,
				Beats:    int(payload[0]),
				BeatUnit: 1 << payload[1],
			})
		}
	case 0x59:
		if len(payload) >= 2 {
			track.Keys = append(track.Keys, KeyChange{
				Ticks:  ticks,
				Fifths: int(int8(payload[0])),
				Minor:  payload[1] == 1,
			})
		}
	}
	return nil
}

// NoteCount returns the total matched notes across all tracks.
func (f *File) NoteCount() int {
	count := 0
	for _, track := range f.Tracks {
		count += len(track.Notes)
	}
	return count
}

// Stream converts the decoded file to a note stream, mapping ticks to
// quarter-note beats via the file's division. Each track becomes one
// voice.
func (f *File) Stream() notestream.Stream {
	div := int64(f.Division)
	if div <= 0 {
		div = 480
	}
	var events []notestream.Event
	for voice, track := range f.Tracks {
		for _, change := range track.Keys {
			events = append(events, notestream.KeySignature(
				notestream.NewBeat(change.Ticks, div), change.Fifths, change.Minor))
		}
		for _, change := range track.Meters {
			events = append(events, notestream.TimeSignature(
				notestream.NewBeat(change.Ticks, div), change.Beats, change.BeatUnit))
		}
		for _, change := range track.Tempos {
			events = append(events, notestream.Tempo(
				notestream.NewBeat(change.Ticks, div), change.BPM))
		}
		for _, note := range track.Notes {
			events = append(events, notestream.Note(
				notestream.NewBeat(note.OnsetTicks, div),
				notestream.NewBeat(note.DurationTicks, div),
				note.Pitch, voice))
		}
	}
	return notestream.Stream{Events: events}
}
