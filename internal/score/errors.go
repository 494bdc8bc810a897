package score

import (
	"github.com/jmgilman/go/errors"
)

// Error codes shared by the validation, aggregation and cache packages.
const (
	// CodeInvalidParams marks malformed call arguments.
	CodeInvalidParams errors.ErrorCode = "INVALID_PARAMS"
	// CodeInvalidDataFormat marks a structurally broken input.
	CodeInvalidDataFormat errors.ErrorCode = "INVALID_DATA_FORMAT"
	// CodeInvalidNumber marks a non-finite or out-of-range number.
	CodeInvalidNumber errors.ErrorCode = "INVALID_NUMBER"
	// CodeInvalidPercentage marks a derived percentage outside [0, 100].
	CodeInvalidPercentage errors.ErrorCode = "INVALID_PERCENTAGE"
	// CodeTotalExceeded marks an aggregate above its allowed maximum.
	CodeTotalExceeded errors.ErrorCode = "TOTAL_EXCEEDED"
	// CodeCacheError marks a durable storage failure.
	CodeCacheError errors.ErrorCode = "CACHE_ERROR"
	// CodeTransformError marks an unexpected failure inside a rule or transform step.
	CodeTransformError errors.ErrorCode = "TRANSFORM_ERROR"
	// CodeMissingScore marks an absent score record.
	CodeMissingScore errors.ErrorCode = "MISSING_SCORE"
	// CodeCalculationError marks input that cannot produce a metric.
	CodeCalculationError errors.ErrorCode = "CALCULATION_ERROR"
)

// ScoreNotFoundError is returned when no raw score exists for a subject.
type ScoreNotFoundError struct {
	message string
}

// Error returns the text of the error.
func (sr *ScoreNotFoundError) Error() string {
	return sr.message
}

// Code reports the taxonomy code of the error.
func (sr *ScoreNotFoundError) Code() errors.ErrorCode {
	return CodeMissingScore
}

// NewScoreNotFoundError creates a ScoreNotFoundError for the given subject.
func NewScoreNotFoundError(subject string) *ScoreNotFoundError {
	return &ScoreNotFoundError{message: "scores not found: " + subject}
}

// InvalidParams builds the error returned on API contract violations.
func InvalidParams(format string, args ...interface{}) error {
	return errors.Newf(CodeInvalidParams, format, args...)
}
