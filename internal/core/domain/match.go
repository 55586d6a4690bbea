package domain

import "errors"

// ErrNoMatch is returned when a face scan finds no template under the threshold.
var ErrNoMatch = errors.New("face not recognized")

// MatchResult is the outcome of a single face scan. It is never persisted.
type MatchResult struct {
	Matched bool
	Email   string
	// Distance is the global minimum seen during the scan, reported even when
	// it did not clear the threshold. It is -1 when nothing was compared.
	Distance float64
	// Ambiguous is set when more than one account shared the minimum distance.
	Ambiguous bool
	Compared  int
}

// NoMatch builds a rejected result carrying the best distance observed.
func NoMatch(best float64, compared int) MatchResult {
	return MatchResult{Distance: best, Compared: compared}
}
