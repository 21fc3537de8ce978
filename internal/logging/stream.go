package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LogEvent is one structured log line as served over the streaming API.
type LogEvent struct {
	Sequence  uint64            `json:"seq"`
	Timestamp time.Time         `json:"ts"`
	Level     string            `json:"level"`
	Message   string            `json:"msg"`
	Component string            `json:"component,omitempty"`
	TaskID    string            `json:"task_id,omitempty"`
	Stage     string            `json:"stage,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

const defaultStreamCapacity = 512

// StreamHub keeps a bounded window of recent events in memory and lets
// pollers block until the window grows past their cursor.
type StreamHub struct {
	mu       sync.Mutex
	capacity int
	events   []LogEvent
	seq      uint64
	grown    chan struct{}
}

// NewStreamHub returns a hub holding at most capacity events.
func NewStreamHub(capacity int) *StreamHub {
	if capacity <= 0 {
		capacity = defaultStreamCapacity
	}
	return &StreamHub{capacity: capacity, grown: make(chan struct{})}
}

// Publish stamps evt with the next sequence number and appends it to the
// window, evicting the oldest entry once the window is full.
func (h *StreamHub) Publish(evt LogEvent) {
	if h == nil {
		return
	}
	now := time.Now().UTC()
	h.mu.Lock()
	h.seq++
	evt.Sequence = h.seq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = now
	}
	if len(h.events) >= h.capacity {
		h.events = append(h.events[:0], h.events[1:]...)
	}
	h.events = append(h.events, evt)
	close(h.grown)
	h.grown = make(chan struct{})
	h.mu.Unlock()
}

// Fetch returns buffered events with sequences above since, oldest first.
// With wait set it blocks until something newer arrives or ctx ends. The
// returned cursor is the newest sequence the hub has assigned.
func (h *StreamHub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]LogEvent, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		h.mu.Lock()
		events, cursor := h.after(since, limit)
		grown := h.grown
		h.mu.Unlock()

		if !wait || len(events) > 0 {
			return events, cursor, ctx.Err()
		}
		select {
		case <-grown:
		case <-ctx.Done():
			return nil, cursor, ctx.Err()
		}
	}
}

// Tail returns up to limit of the newest buffered events without blocking.
func (h *StreamHub) Tail(limit int) ([]LogEvent, uint64) {
	if h == nil {
		return nil, 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}
	// Sequences are contiguous, so the newest limit events are exactly
	// those numbered above seq-limit.
	var since uint64
	if h.seq > uint64(limit) {
		since = h.seq - uint64(limit)
	}
	return h.after(since, limit)
}

func (h *StreamHub) after(since uint64, limit int) ([]LogEvent, uint64) {
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}
	first := 0
	for first < len(h.events) && h.events[first].Sequence <= since {
		first++
	}
	if first == len(h.events) {
		return nil, h.seq
	}
	last := first + limit
	if last > len(h.events) {
		last = len(h.events)
	}
	out := make([]LogEvent, last-first)
	copy(out, h.events[first:last])
	return out, h.seq
}

// streamHandler tees every record into the hub on its way to the next
// handler in the chain.
type streamHandler struct {
	next      slog.Handler
	hub       *StreamHub
	inherited []slog.Attr
}

func newStreamHandler(next slog.Handler, hub *StreamHub) slog.Handler {
	if hub == nil || next == nil {
		return next
	}
	return &streamHandler{next: next, hub: hub}
}

func (h *streamHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *streamHandler) Handle(ctx context.Context, record slog.Record) error {
	h.hub.Publish(eventFromRecord(record, h.inherited))
	return h.next.Handle(ctx, record.Clone())
}

func (h *streamHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	inherited := append(append([]slog.Attr(nil), h.inherited...), attrs...)
	return &streamHandler{next: h.next.WithAttrs(attrs), hub: h.hub, inherited: inherited}
}

func (h *streamHandler) WithGroup(name string) slog.Handler {
	return &streamHandler{next: h.next.WithGroup(name), hub: h.hub, inherited: h.inherited}
}

func eventFromRecord(record slog.Record, inherited []slog.Attr) LogEvent {
	var evt LogEvent
	evt.Timestamp = record.Time
	evt.Level = strings.ToUpper(record.Level.String())
	evt.Message = strings.TrimSpace(record.Message)
	for _, attr := range inherited {
		evt.absorb(attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		evt.absorb(attr)
		return true
	})
	return evt
}

// absorb routes one attribute into its LogEvent slot. The shared field
// keys land in dedicated columns, everything else in the Fields map.
func (e *LogEvent) absorb(attr slog.Attr) {
	key := strings.TrimSpace(attr.Key)
	switch key {
	case "":
	case FieldComponent:
		e.Component = attrString(attr.Value)
	case FieldTaskID:
		e.TaskID = attrString(attr.Value)
	case FieldStage:
		e.Stage = attrString(attr.Value)
	default:
		if e.Fields == nil {
			e.Fields = make(map[string]string)
		}
		e.Fields[key] = attrString(attr.Value)
	}
}
