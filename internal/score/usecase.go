package score

import "math"

// TestType identifies the exam component a score value belongs to.
type TestType string

const (
	// TestTypeCommon is the shared exam taken by every applicant.
	TestTypeCommon TestType = "common"
	// TestTypeSecondary is the individual exam chosen per subject.
	TestTypeSecondary TestType = "secondary"
)

// TestTypes lists the exam components in their canonical order.
var TestTypes = []TestType{TestTypeCommon, TestTypeSecondary}

// ID returns the numeric identifier used by chart consumers.
func (t TestType) ID() int {
	switch t {
	case TestTypeCommon:
		return 1
	case TestTypeSecondary:
		return 2
	default:
		return 0
	}
}

// RawScore holds the two exam-component scores of one subject.
type RawScore struct {
	// CommonTestValue: score of the common exam.
	CommonTestValue float64 `json:"commonTest" yaml:"commonTest"`
	// SecondaryTestValue: score of the secondary exam.
	SecondaryTestValue float64 `json:"secondTest" yaml:"secondTest"`
}

// Value returns the component value for the given test type.
func (r RawScore) Value(t TestType) float64 {
	switch t {
	case TestTypeCommon:
		return r.CommonTestValue
	case TestTypeSecondary:
		return r.SecondaryTestValue
	default:
		return 0
	}
}

// Finite reports whether both components are finite numbers.
func (r RawScore) Finite() bool {
	return isFinite(r.CommonTestValue) && isFinite(r.SecondaryTestValue)
}

// Subjects maps a subject name to its raw score. A nil value means the
// score was requested but not found.
type Subjects map[string]*RawScore

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
