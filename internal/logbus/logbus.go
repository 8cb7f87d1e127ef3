// Package logbus delivers log messages to interactive shells. A Hub fans
// each published message out to every registered bounded Queue, and a
// zapcore.Core bridge lets ordinary zap loggers publish into the hub so that
// log output interleaves cleanly with the shells' line editing.
package logbus

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"

	"github.com/TrailHuang/conshell/pkg/types"
)

// Queue is one receiver's bounded FIFO. When a message arrives on a full
// queue the oldest one is dropped.
type Queue struct {
	mu    sync.Mutex
	msgs  []types.LogMessage
	depth int
}

// NewQueue returns a queue bounded to depth messages.
func NewQueue(depth int) *Queue {
	if depth <= 0 {
		depth = 16
	}
	return &Queue{depth: depth}
}

// Push appends m, dropping the oldest message on overflow.
func (q *Queue) Push(m types.LogMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.msgs) >= q.depth {
		copy(q.msgs, q.msgs[1:])
		q.msgs = q.msgs[:len(q.msgs)-1]
	}
	q.msgs = append(q.msgs, m)
}

// Pending reports whether the queue holds undelivered messages.
func (q *Queue) Pending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs) > 0
}

// Drain returns and clears the queued messages, oldest first.
func (q *Queue) Drain() []types.LogMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.msgs
	q.msgs = nil
	return out
}

// Hub fans published messages out to registered queues.
type Hub struct {
	mu     sync.Mutex
	queues []*Queue
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{}
}

// Register adds q as a receiver.
func (h *Hub) Register(q *Queue) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queues = append(h.queues, q)
}

// Unregister removes q.
func (h *Hub) Unregister(q *Queue) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, cand := range h.queues {
		if cand == q {
			h.queues = append(h.queues[:i], h.queues[i+1:]...)
			return
		}
	}
}

// Publish delivers m to every registered queue.
func (h *Hub) Publish(m types.LogMessage) {
	h.mu.Lock()
	queues := append([]*Queue(nil), h.queues...)
	h.mu.Unlock()
	for _, q := range queues {
		q.Push(m)
	}
}

// Core returns a zapcore.Core that publishes every enabled entry to the hub.
// The logger name becomes the message source; structured fields are rendered
// as sorted key=value pairs after the message text.
func (h *Hub) Core(enab zapcore.LevelEnabler) zapcore.Core {
	return &hubCore{LevelEnabler: enab, hub: h}
}

type hubCore struct {
	zapcore.LevelEnabler
	hub    *Hub
	fields []zapcore.Field
}

func (c *hubCore) With(fields []zapcore.Field) zapcore.Core {
	clone := &hubCore{LevelEnabler: c.LevelEnabler, hub: c.hub}
	clone.fields = append(append([]zapcore.Field(nil), c.fields...), fields...)
	return clone
}

func (c *hubCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *hubCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	text := ent.Message
	all := append(append([]zapcore.Field(nil), c.fields...), fields...)
	if len(all) > 0 {
		enc := zapcore.NewMapObjectEncoder()
		for _, f := range all {
			f.AddTo(enc)
		}
		keys := make([]string, 0, len(enc.Fields))
		for k := range enc.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(text)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, enc.Fields[k])
		}
		text = b.String()
	}
	c.hub.Publish(types.LogMessage{
		Time:   ent.Time,
		Level:  ent.Level,
		Source: ent.LoggerName,
		Text:   text,
	})
	return nil
}

func (c *hubCore) Sync() error {
	return nil
}
