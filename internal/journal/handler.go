package journal

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
)

// TimeLayout is the format of the "time" field of every journal line.
const TimeLayout = "2006-01-02 15:04:05"

// lineHandler is a slog handler that writes each record as one JSON object
// per line. The record message and level are dropped; attributes are written
// at the top level next to "time".
type lineHandler struct {
	mu    *sync.Mutex
	out   io.Writer
	attrs []slog.Attr
}

func newLineHandler(out io.Writer) *lineHandler {
	return &lineHandler{mu: &sync.Mutex{}, out: out}
}

// Handle serializes r as a JSONL line.
func (h *lineHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make(map[string]any, r.NumAttrs()+len(h.attrs)+1)
	fields["time"] = r.Time.Format(TimeLayout)

	add := func(a slog.Attr) bool {
		v := a.Value.Resolve()
		if a.Key != "" && v.Any() != nil {
			fields[a.Key] = v.Any()
		}
		return true
	}
	for _, a := range h.attrs {
		add(a)
	}
	r.Attrs(add)

	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.out.Write(append(data, '\n'))
	return err
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

// WithGroup is a no-op: journal lines are flat.
func (h *lineHandler) WithGroup(string) slog.Handler {
	return h
}

func (h *lineHandler) Enabled(context.Context, slog.Level) bool {
	return true
}
