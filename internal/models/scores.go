package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Score is a user-entered score. It may be unset; unset and non-numeric
// input compare as 0.
type Score struct {
	value float64
	set   bool
}

// NewScore returns a set score
func NewScore(v float64) Score {
	return Score{value: v, set: true}
}

// ParseScore parses form input. Blank, non-numeric or non-finite text
// yields an unset score.
func ParseScore(s string) Score {
	s = strings.TrimSpace(s)
	if s == "" {
		return Score{}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Score{}
	}
	return finiteScore(f)
}

func finiteScore(f float64) Score {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Score{}
	}
	return NewScore(f)
}

// IsSet reports whether a numeric value was supplied
func (s Score) IsSet() bool {
	return s.set
}

// Value returns the score, or 0 when unset
func (s Score) Value() float64 {
	if !s.set {
		return 0
	}
	return s.value
}

// String formats the score for display; unset scores are empty
func (s Score) String() string {
	if !s.set {
		return ""
	}
	return strconv.FormatFloat(s.value, 'f', -1, 64)
}

// MarshalJSON writes a number when set and "" otherwise
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.set {
		return []byte(`""`), nil
	}
	return json.Marshal(s.value)
}

// UnmarshalJSON accepts a number, a numeric string, "" or null
func (s *Score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = Score{}
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = ParseScore(str)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*s = finiteScore(f)
	return nil
}

// UserScores holds the academic profile entered by the user
type UserScores struct {
	GPA   Score `json:"gpa"`
	IELTS Score `json:"ielts"`
}
