package proctor

import (
	"strings"

	"github.com/google/uuid"
)

// GradeResult is the outcome of grading one attempt.
type GradeResult struct {
	Marks      map[uuid.UUID]float64 `json:"-"`
	Total      float64               `json:"total"`
	MaxTotal   float64               `json:"max_total"`
	Percentage float64               `json:"percentage"`
	Grade      *string               `json:"grade,omitempty"`
}

// Grade scores answers against the authoritative questions. An answer to an
// unknown question scores zero. Client-held marks are ignored.
func Grade(answers []Answer, questions []Question) GradeResult {
	byID := make(map[uuid.UUID]Question, len(questions))
	var maxTotal float64
	for _, q := range questions {
		byID[q.ID] = q
		maxTotal += q.Marks
	}

	res := GradeResult{
		Marks:    make(map[uuid.UUID]float64, len(answers)),
		MaxTotal: maxTotal,
	}
	for _, a := range answers {
		var got float64
		if q, ok := byID[a.QuestionID]; ok && answerMatches(a.Answer, q.CorrectAnswer) {
			got = q.Marks
		}
		res.Marks[a.QuestionID] = got
		res.Total += got
	}
	if maxTotal > 0 {
		res.Percentage = res.Total / maxTotal * 100
	}
	return res
}

func answerMatches(given, correct string) bool {
	given = strings.TrimSpace(given)
	return given != "" && given == strings.TrimSpace(correct)
}

// ResolveGrade returns the grade of the first band containing pct, or nil.
func ResolveGrade(bands []GradeBand, pct float64) *string {
	for _, b := range bands {
		if pct >= b.MinScore && pct <= b.MaxScore {
			g := b.Grade
			return &g
		}
	}
	return nil
}
