package logging

import (
	"fmt"
	"strings"
	"sync"
)

// MockLogger records messages so tests can assert on them
type MockLogger struct {
	mu       sync.Mutex
	Messages []LogMessage
	level    LogLevel
}

// LogMessage is one recorded log call
type LogMessage struct {
	Level   LogLevel
	Message string
	Args    []any
}

// NewMockLogger creates a mock logger that records every level
func NewMockLogger() *MockLogger {
	return &MockLogger{level: LogLevelDebug}
}

func (m *MockLogger) record(level LogLevel, msg string, args []any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if level < m.level {
		return
	}
	m.Messages = append(m.Messages, LogMessage{Level: level, Message: msg, Args: args})
}

func (m *MockLogger) Debug(msg string, args ...any) { m.record(LogLevelDebug, msg, args) }
func (m *MockLogger) Info(msg string, args ...any)  { m.record(LogLevelInfo, msg, args) }
func (m *MockLogger) Warn(msg string, args ...any)  { m.record(LogLevelWarn, msg, args) }
func (m *MockLogger) Error(msg string, args ...any) { m.record(LogLevelError, msg, args) }

// SetLevel sets the minimum recorded level
func (m *MockLogger) SetLevel(level LogLevel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.level = level
}

// GetMessages returns a copy of the recorded messages
func (m *MockLogger) GetMessages() []LogMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LogMessage(nil), m.Messages...)
}

// Clear drops all recorded messages
func (m *MockLogger) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = nil
}

// Count returns how many messages were recorded at level
func (m *MockLogger) Count(level LogLevel) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.Messages {
		if msg.Level == level {
			n++
		}
	}
	return n
}

// HasMessage reports whether a message with exactly this text was recorded
func (m *MockLogger) HasMessage(text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.Messages {
		if msg.Message == text {
			return true
		}
	}
	return false
}

func (m *MockLogger) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sb strings.Builder
	for _, msg := range m.Messages {
		fmt.Fprintf(&sb, "[%s] %s %v\n", msg.Level, msg.Message, msg.Args)
	}
	return sb.String()
}
