// Package journal keeps an append-only JSONL trail of validation outcomes.
package journal

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"

	"examscore/internal/validation"
)

const (
	DefaultSize   = 100
	DefaultAmount = 20
)

// Entry is one validated subject.
type Entry struct {
	Subject string             `json:"subject"`
	Total   float64            `json:"total"`
	Valid   bool               `json:"valid"`
	Cached  bool               `json:"cached"`
	Errors  []validation.Error `json:"errors,omitempty"`
}

// Journal records validation outcomes.
type Journal interface {
	Append(e Entry)
	Close() error
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Append(Entry) {}

func (Nop) Close() error { return nil }

// JSONJournal writes entries to a JSONL file rotated and compressed by
// lumberjack. It is safe for concurrent use.
type JSONJournal struct {
	out    io.WriteCloser
	logger *slog.Logger
}

// NewJSONJournal opens a journal at file. maxSize is the size in megabytes at
// which the file is rotated and maxBackups the number of rotated files kept;
// zero values use DefaultSize and DefaultAmount.
func NewJSONJournal(file string, maxSize, maxBackups int) *JSONJournal {
	if maxSize <= 0 {
		maxSize = DefaultSize
	}
	if maxBackups <= 0 {
		maxBackups = DefaultAmount
	}
	return newJSONJournal(&lumberjack.Logger{
		Filename:   file,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		Compress:   true,
	})
}

func newJSONJournal(out io.WriteCloser) *JSONJournal {
	return &JSONJournal{
		out:    out,
		logger: slog.New(newLineHandler(out)),
	}
}

// Append writes e as a line with "time" and "entry" fields.
func (j *JSONJournal) Append(e Entry) {
	j.logger.Info("", "entry", e)
}

// Close flushes and closes the underlying file.
func (j *JSONJournal) Close() error {
	return j.out.Close()
}
