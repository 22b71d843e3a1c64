package srs

import "fmt"

// ReviewScore is the grade given in a review.
type ReviewScore int

const (
	ScoreAgain ReviewScore = iota + 1
	ScoreHard
	ScoreNormal
	ScoreEasy
)

var scoreNames = map[ReviewScore]string{
	ScoreAgain:  "again",
	ScoreHard:   "hard",
	ScoreNormal: "normal",
	ScoreEasy:   "easy",
}

// Valid reports whether s is one of the known scores.
func (s ReviewScore) Valid() bool {
	_, ok := scoreNames[s]
	return ok
}

func (s ReviewScore) String() string {
	if name, ok := scoreNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ReviewScore(%d)", int(s))
}

func (s ReviewScore) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid review score %d", int(s))
	}
	return []byte(scoreNames[s]), nil
}

func (s *ReviewScore) UnmarshalText(text []byte) error {
	for score, name := range scoreNames {
		if name == string(text) {
			*s = score
			return nil
		}
	}
	return fmt.Errorf("invalid review score %q", string(text))
}
