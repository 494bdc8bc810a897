package aggregate

import (
	"fmt"

	"github.com/jmgilman/go/errors"

	"examscore/internal/score"
)

// ScoreRecord is one positive exam-component score of a subject.
type ScoreRecord struct {
	SubjectName string         `json:"subjectName"`
	TestType    score.TestType `json:"testType"`
	TestTypeID  int            `json:"testTypeId"`
	Value       float64        `json:"value"`
	Category    string         `json:"category"`
}

// ScoreError describes why a subject, or part of it, could not be used.
type ScoreError struct {
	Code     errors.ErrorCode `json:"code"`
	Subject  string           `json:"subject"`
	TestType score.TestType   `json:"testType,omitempty"`
	Message  string           `json:"message"`
}

// Error implements the error interface.
func (e ScoreError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// AggregatedScore is a percentage-bearing chart entry. It is derived from the
// source scores on every call and never cached on its own.
type AggregatedScore struct {
	SubjectName string         `json:"subjectName"`
	TestType    score.TestType `json:"testType,omitempty"`
	TestTypeID  int            `json:"testTypeId"`
	Value       float64        `json:"value"`
	Percentage  float64        `json:"percentage"`
	Category    string         `json:"category"`
}

// PieData is the outcome of a chart transform: the entries that could be
// computed, their common total, and every problem met along the way.
type PieData struct {
	Entries []AggregatedScore `json:"entries"`
	Total   float64           `json:"total"`
	Errors  []ScoreError      `json:"errors"`
}

// HasErrors reports whether any subject produced an error.
func (p PieData) HasErrors() bool {
	return len(p.Errors) > 0
}
