package log

import (
	"context"
	"log/slog"
	"sync"
)

// DefaultKeep is how many records a RingHandler retains.
const DefaultKeep = 20

// RingHandler is a slog.Handler that remembers the most recent records and
// can forward them to a channel before passing them on.
type RingHandler struct {
	slog.Handler

	state *ringState
}

type ringState struct {
	mu   sync.Mutex
	keep int
	ch   chan<- slog.Record
	logs []slog.Record
}

// NewRingHandler wraps handler, keeping the last keep records.
func NewRingHandler(handler slog.Handler, keep int) *RingHandler {
	if keep <= 0 {
		keep = DefaultKeep
	}
	return &RingHandler{
		Handler: handler,
		state:   &ringState{keep: keep},
	}
}

// Handle stores the record, forwards it if an output is set, and passes it
// to the wrapped handler. Forwarding never blocks; records are dropped when
// the channel is full.
func (h *RingHandler) Handle(ctx context.Context, r slog.Record) error {
	s := h.state
	s.mu.Lock()
	s.logs = append(s.logs, r.Clone())
	if len(s.logs) > s.keep {
		s.logs = s.logs[1:]
	}
	if s.ch != nil {
		select {
		case s.ch <- r.Clone():
		default:
		}
	}
	s.mu.Unlock()

	return h.Handler.Handle(ctx, r)
}

func (h *RingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &RingHandler{Handler: h.Handler.WithAttrs(attrs), state: h.state}
}

func (h *RingHandler) WithGroup(name string) slog.Handler {
	return &RingHandler{Handler: h.Handler.WithGroup(name), state: h.state}
}

// Logs returns a copy of the stored records, oldest first.
func (h *RingHandler) Logs() []slog.Record {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	return append([]slog.Record(nil), h.state.logs...)
}

// SetOutput sets the channel records are forwarded to. nil stops forwarding.
func (h *RingHandler) SetOutput(ch chan<- slog.Record) {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	h.state.ch = ch
}

var defaultHandler *RingHandler

// Init installs a RingHandler around handler as the default logger and
// returns it.
func Init(handler slog.Handler) *slog.Logger {
	defaultHandler = NewRingHandler(handler, DefaultKeep)
	logger := slog.New(defaultHandler)
	slog.SetDefault(logger)
	return logger
}

// SetOutput sets the output channel for the default logger.
func SetOutput(ch chan<- slog.Record) {
	if defaultHandler != nil {
		defaultHandler.SetOutput(ch)
	}
}

// Logs returns the stored records from the default logger.
func Logs() []slog.Record {
	if defaultHandler == nil {
		return nil
	}
	return defaultHandler.Logs()
}
