package testutil

import (
	"fmt"
	"sync"

	"github.com/hupe1980/botmesh/core"
)

// RecordingLog is an in-memory core.MessageLog capturing every record and
// status update for assertions.
type RecordingLog struct {
	mu       sync.Mutex
	messages []core.Message
	index    map[string]int
}

// NewRecordingLog constructs an empty log.
func NewRecordingLog() *RecordingLog {
	return &RecordingLog{index: make(map[string]int)}
}

// Record implements core.MessageLog.
func (l *RecordingLog) Record(m core.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.index[m.ID] = len(l.messages)
	l.messages = append(l.messages, m)
	return nil
}

// UpdateStatus implements core.MessageLog.
func (l *RecordingLog) UpdateStatus(id string, status core.Status) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	i, ok := l.index[id]
	if !ok {
		return fmt.Errorf("message %s not recorded", id)
	}
	l.messages[i].Status = status
	return nil
}

// Messages returns a snapshot of all recorded messages.
func (l *RecordingLog) Messages() []core.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]core.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// ByKind returns recorded messages filtered by kind.
func (l *RecordingLog) ByKind(kind core.Kind) []core.Message {
	var out []core.Message
	for _, m := range l.Messages() {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// ByCorrelation returns recorded messages sharing the correlation id.
func (l *RecordingLog) ByCorrelation(correlationID string) []core.Message {
	var out []core.Message
	for _, m := range l.Messages() {
		if m.CorrelationID == correlationID {
			out = append(out, m)
		}
	}
	return out
}
