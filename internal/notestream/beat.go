package notestream

import "fmt"

// Beat is an exact rational time value measured in quarter-note units.
// The zero value is 0 beats. Beats are immutable; arithmetic returns new
// values in lowest terms with a positive denominator.
type Beat struct {
	num int64
	den int64
}

// NewBeat returns num/den quarter notes. A zero denominator yields the
// zero beat.
func NewBeat(num, den int64) Beat {
	if den == 0 {
		return Beat{}
	}
	if den < 0 {
		num, den = -num, -den
	}
	g := gcd(abs64(num), den)
	if g > 1 {
		num /= g
		den /= g
	}
	return Beat{num: num, den: den}
}

// BeatFromInt returns a whole number of quarter notes.
func BeatFromInt(n int64) Beat {
	return Beat{num: n, den: 1}
}

func (b Beat) normalized() Beat {
	if b.den == 0 {
		return Beat{num: 0, den: 1}
	}
	return b
}

// Num returns the reduced numerator.
func (b Beat) Num() int64 { return b.normalized().num }

// Den returns the reduced positive denominator.
func (b Beat) Den() int64 { return b.normalized().den }

func (b Beat) Add(other Beat) Beat {
	b, other = b.normalized(), other.normalized()
	return NewBeat(b.num*other.den+other.num*b.den, b.den*other.den)
}

func (b Beat) Sub(other Beat) Beat {
	b, other = b.normalized(), other.normalized()
	return NewBeat(b.num*other.den-other.num*b.den, b.den*other.den)
}

// Cmp returns -1, 0, or 1 as b is less than, equal to, or greater than other.
func (b Beat) Cmp(other Beat) int {
	b, other = b.normalized(), other.normalized()
	left := b.num * other.den
	right := other.num * b.den
	switch {
	case left < right:
		return -1
	case left > right:
		return 1
	default:
		return 0
	}
}

func (b Beat) Less(other Beat) bool { return b.Cmp(other) < 0 }

// Sign returns -1 for negative beats, 0 for zero, 1 for positive.
func (b Beat) Sign() int {
	b = b.normalized()
	switch {
	case b.num < 0:
		return -1
	case b.num > 0:
		return 1
	default:
		return 0
	}
}

func (b Beat) IsZero() bool { return b.Sign() == 0 }

func (b Beat) Float64() float64 {
	b = b.normalized()
	return float64(b.num) / float64(b.den)
}

// Quantize snaps b to the nearest multiple of resolution, rounding halves
// away from zero. A non-positive resolution returns b unchanged.
func (b Beat) Quantize(resolution Beat) Beat {
	resolution = resolution.normalized()
	if resolution.Sign() <= 0 {
		return b.normalized()
	}
	b = b.normalized()
	// b / resolution = (b.num * resolution.den) / (b.den * resolution.num)
	num := b.num * resolution.den
	den := b.den * resolution.num
	steps := roundDiv(num, den)
	return NewBeat(steps*resolution.num, resolution.den)
}

func (b Beat) String() string {
	b = b.normalized()
	if b.den == 1 {
		return fmt.Sprintf("%d", b.num)
	}
	return fmt.Sprintf("%d/%d", b.num, b.den)
}

// roundDiv divides num by den rounding to nearest, halves away from zero.
func roundDiv(num, den int64) int64 {
	if den < 0 {
		num, den = -num, -den
	}
	if num >= 0 {
		return (num + den/2) / den
	}
	return -((-num + den/2) / den)
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
