package notestream

// fifthsByTonic maps a major-key tonic pitch class to its position on the
// circle of fifths, preferring flats past six sharps.
var fifthsByTonic = [12]int{0, -5, 2, -3, 4, -1, 6, 1, -4, 3, -2, 5}

// majorScale marks the diatonic pitch classes of a major scale rooted at 0.
var majorScale = [12]bool{0: true, 2: true, 4: true, 5: true, 7: true, 9: true, 11: true}

// inferKeySignature picks the major key whose diatonic scale covers the
// most sounding notes. Ties break toward the key with fewer accidentals.
func inferKeySignature(stream Stream) (Event, bool) {
	var histogram [12]int
	total := 0
	for _, ev := range stream.Events {
		if ev.Kind != KindNote {
			continue
		}
		histogram[ev.Pitch%12]++
		total++
	}
	if total == 0 {
		return Event{}, false
	}

	bestTonic := 0
	bestCovered := -1
	for tonic := 0; tonic < 12; tonic++ {
		covered := 0
		for pc := 0; pc < 12; pc++ {
			if majorScale[(pc-tonic+12)%12] {
				covered += histogram[pc]
			}
		}
		if covered > bestCovered ||
			(covered == bestCovered && absInt(fifthsByTonic[tonic]) < absInt(fifthsByTonic[bestTonic])) {
			bestCovered = covered
			bestTonic = tonic
		}
	}
	return KeySignature(Beat{}, fifthsByTonic[bestTonic], false), true
}

// inferTimeSignature chooses between 4/4 and 3/4 by downbeat alignment:
// the candidate measure length under which more note onsets land on the
// first beat wins. 4/4 wins ties.
func inferTimeSignature(stream Stream) (Event, bool) {
	notes := stream.Notes()
	if len(notes) == 0 {
		return Event{}, false
	}
	onDownbeat := func(measure int64) int {
		count := 0
		for _, note := range notes {
			onset := note.Onset
			if onset.Den() != 1 {
				continue
			}
			if onset.Num()%measure == 0 {
				count++
			}
		}
		return count
	}
	if onDownbeat(3) > onDownbeat(4) {
		return TimeSignature(Beat{}, 3, 4), true
	}
	return TimeSignature(Beat{}, 4, 4), true
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
