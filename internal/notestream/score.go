package notestream

// Quality factor names reported in QualityReport.Components.
const (
	FactorDensity   = "density"
	FactorCoverage  = "coverage"
	FactorStructure = "structure"
	FactorFallback  = "fallback"
)

const (
	densityTargetNotes = 100
	coverageTargetSpan = 32
)

// QualityReport holds the overall quality score and its per-factor
// breakdown. All values are in [0,1].
type QualityReport struct {
	Score      float64            `json:"score"`
	Components map[string]float64 `json:"components"`
}

// Score rates a normalized stream on three equally weighted factors:
// note density against a 100-note target, temporal coverage against a
// 32-quarter-note target, and presence of key and time signatures.
// The score is clamped to [0,1] and never fails; an internal anomaly
// degrades to a neutral 0.5 reported under the fallback component.
func Score(stream Stream) QualityReport {
	span := stream.Span()
	if span.Sign() < 0 {
		return QualityReport{
			Score: 0.5,
			Components: map[string]float64{
				FactorFallback: 0.5,
			},
		}
	}

	density := clamp01(float64(stream.NoteCount()) / densityTargetNotes)
	coverage := clamp01(span.Float64() / coverageTargetSpan)
	structure := 0.0
	if stream.HasMarker(KindKeySignature) {
		structure += 0.5
	}
	if stream.HasMarker(KindTimeSignature) {
		structure += 0.5
	}

	return QualityReport{
		Score: clamp01((density + coverage + structure) / 3),
		Components: map[string]float64{
			FactorDensity:   density,
			FactorCoverage:  coverage,
			FactorStructure: structure,
		},
	}
}

func clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
