package testutil

import (
	"fmt"
	"sync"
)

// RecordingLogger keeps every message it receives. Safe for concurrent use.
type RecordingLogger struct {
	mu       sync.Mutex
	Messages []string
}

func (l *RecordingLogger) log(level, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, fmt.Sprintf("%s %s %v", level, msg, args))
}

func (l *RecordingLogger) Debug(msg string, args ...any) { l.log("DEBUG", msg, args...) }
func (l *RecordingLogger) Info(msg string, args ...any)  { l.log("INFO", msg, args...) }
func (l *RecordingLogger) Warn(msg string, args ...any)  { l.log("WARN", msg, args...) }
func (l *RecordingLogger) Error(msg string, args ...any) { l.log("ERROR", msg, args...) }

// Count returns the number of messages received at level.
func (l *RecordingLogger) Count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, m := range l.Messages {
		if len(m) > len(level) && m[:len(level)+1] == level+" " {
			n++
		}
	}
	return n
}
