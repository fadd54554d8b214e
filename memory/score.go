package memory

import (
	"strings"
	"unicode"
)

// SaveThreshold is the minimum admission score for a candidate to be
// persisted. Candidates scoring below it are discarded before any mutation.
const SaveThreshold = 0.6

// Scorer decides whether a prospective memory is worth keeping.
// The Store computes the recurring flag (near-duplicate already present)
// before calling Score.
type Scorer interface {
	Score(text string, typ Type, recurring bool) float64
}

// WeightedScorer is the default admission policy: a fixed weighted sum of
// intent, specificity, recurrence, recency, and longevity signals.
//
//	score = 0.35*intent + 0.20*specificity + 0.20*recurrence + 0.15*recency + 0.10*longevity
//
// Intent and recency are constant 1.0 here: only explicit capture calls are
// scored, and a new candidate is maximally recent at creation time. Upstream
// callers that capture heuristically still go through the same gate.
type WeightedScorer struct{}

// Score returns the admission score in [0, 1].
func (WeightedScorer) Score(text string, typ Type, recurring bool) float64 {
	const (
		intent  = 1.0
		recency = 1.0
	)

	specificity := 0.4
	if strings.ContainsFunc(text, unicode.IsDigit) {
		specificity = 1.0
	} else if len(strings.Fields(text)) > 5 {
		specificity = 0.7
	}

	recurrence := 0.0
	if recurring {
		recurrence = 1.0
	}

	return 0.35*intent + 0.20*specificity + 0.20*recurrence + 0.15*recency + 0.10*longevity(typ)
}

// longevity reflects how long a memory of the given type is expected to stay
// useful.
func longevity(typ Type) float64 {
	switch typ {
	case TypeProfile, TypePreference, TypeGlossary:
		return 1.0
	case TypeFact:
		return 0.6
	case TypeTask, TypeProject:
		return 0.3
	default:
		return 0.6
	}
}
