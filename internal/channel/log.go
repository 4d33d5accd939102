package channel

import (
	"sync"

	"palaver/internal/models"
)

// Log keeps the in-memory message history of every live channel. Each channel
// holds a fixed-size ring buffer, so retention is capped per channel and the
// oldest messages fall off first.
type Log struct {
	mu  sync.RWMutex
	max int
	// channel wire key -> ring buffer
	buffers map[string]*ring
}

type ring struct {
	records []models.Message
	pos     int
	count   int
	lastSeq int64
}

// NewLog creates an empty Log retaining at most max messages per channel.
func NewLog(max int) *Log {
	if max <= 0 {
		max = 1
	}
	return &Log{
		max:     max,
		buffers: make(map[string]*ring),
	}
}

// Append stores a message in its channel's buffer, assigns the next sequence
// number, and returns the stored copy. The channel is created on first use.
func (l *Log) Append(key string, msg models.Message) models.Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.buffers[key]
	if !ok {
		r = &ring{records: make([]models.Message, l.max)}
		l.buffers[key] = r
	}

	r.lastSeq++
	msg.Seq = r.lastSeq

	r.records[r.pos] = msg
	r.pos = (r.pos + 1) % l.max
	if r.count < l.max {
		r.count++
	}

	return msg
}

// History returns the channel's retained messages in append order. A channel
// with no history yields an empty slice, never an error.
func (l *Log) History(key string) []models.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, ok := l.buffers[key]
	if !ok {
		return []models.Message{}
	}

	result := make([]models.Message, r.count)
	// Oldest record sits at (pos - count) mod max.
	start := (r.pos - r.count + l.max) % l.max
	for i := 0; i < r.count; i++ {
		result[i] = r.records[(start+i)%l.max]
	}
	return result
}

// Keys returns the wire keys of every channel holding retained messages.
func (l *Log) Keys() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	keys := make([]string, 0, len(l.buffers))
	for key := range l.buffers {
		keys = append(keys, key)
	}
	return keys
}

// Purge drops a channel's history entirely. Called when the channel's
// membership becomes empty; a later Append starts from a fresh buffer.
func (l *Log) Purge(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.buffers, key)
}

// Len returns the number of retained messages for a channel.
func (l *Log) Len(key string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if r, ok := l.buffers[key]; ok {
		return r.count
	}
	return 0
}
