// Package grading maps weighted evaluation scores to letter grades and the
// presentation metadata shown next to them.
package grading

import (
	"encoding/json"
	"math"
	"strings"
)

// Letter is a letter grade.
type Letter string

const (
	GradeA Letter = "A"
	GradeB Letter = "B"
	GradeC Letter = "C"
	GradeD Letter = "D"
	GradeF Letter = "F"
)

// Band maps a lower score threshold (inclusive) to a grade and its display metadata.
type Band struct {
	Min         float64 `json:"min"`
	Grade       Letter  `json:"grade"`
	Description string  `json:"description"`
	Color       string  `json:"color"`
	BgColor     string  `json:"bg_color"`
}

// MarshalJSON emits the open-ended lowest band with a null min.
func (b Band) MarshalJSON() ([]byte, error) {
	type band Band
	out := struct {
		band
		Min *float64 `json:"min"`
	}{band: band(b)}
	if !math.IsInf(b.Min, 0) {
		lower := b.Min
		out.Min = &lower
	}
	return json.Marshal(out)
}

// GradeInfo is the display metadata for a score.
type GradeInfo struct {
	Grade       Letter `json:"grade"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

const unknownBgColor = "bg-gray-100 text-gray-800"

// bands is ordered by descending threshold; the last entry catches everything below it.
var bands = [...]Band{
	{Min: 90, Grade: GradeA, Description: "Excellent", Color: "text-green-600", BgColor: "bg-green-100 text-green-800"},
	{Min: 80, Grade: GradeB, Description: "Very Good", Color: "text-blue-600", BgColor: "bg-blue-100 text-blue-800"},
	{Min: 70, Grade: GradeC, Description: "Good", Color: "text-yellow-600", BgColor: "bg-yellow-100 text-yellow-800"},
	{Min: 60, Grade: GradeD, Description: "Satisfactory", Color: "text-orange-600", BgColor: "bg-orange-100 text-orange-800"},
	{Min: math.Inf(-1), Grade: GradeF, Description: "Needs Improvement", Color: "text-red-600", BgColor: "bg-red-100 text-red-800"},
}

// Bands returns a copy of the grade band table, highest band first.
func Bands() []Band {
	out := make([]Band, len(bands))
	copy(out[:], bands[:])
	return out
}

func bandFor(score float64) Band {
	if math.IsNaN(score) {
		return bands[len(bands)-1]
	}
	for _, b := range bands {
		if score >= b.Min {
			return b
		}
	}
	return bands[len(bands)-1]
}

// CalculateGrade returns the letter grade for a cumulative score.
func CalculateGrade(score float64) Letter {
	return bandFor(score).Grade
}

// Info returns grade, description and text color for a score. It shares the
// band lookup with CalculateGrade so the two can never disagree.
func Info(score float64) GradeInfo {
	b := bandFor(score)
	return GradeInfo{Grade: b.Grade, Description: b.Description, Color: b.Color}
}

// BgColor returns the badge background class for a letter grade. Unknown
// input yields a neutral class.
func BgColor(grade string) string {
	letter := Letter(strings.ToUpper(strings.TrimSpace(grade)))
	for _, b := range bands {
		if b.Grade == letter {
			return b.BgColor
		}
	}
	return unknownBgColor
}

// IsLetter reports whether s names one of the five letter grades.
func IsLetter(s string) bool {
	for _, b := range bands {
		if string(b.Grade) == s {
			return true
		}
	}
	return false
}
