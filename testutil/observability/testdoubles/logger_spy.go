package testdoubles

import (
	"context"
	"strings"
	"sync"

	"github.com/AntonStoeckl/dedup-guard-go/dedup"
)

// SpyLogRecord represents one captured log call.
type SpyLogRecord struct {
	Level   string
	Message string
	Args    []any
}

// LoggerSpy captures log calls for inspection in tests.
// It implements both dedup.Logger and dedup.ContextualLogger.
type LoggerSpy struct {
	mu      sync.Mutex
	records []SpyLogRecord
}

// NewLoggerSpy creates a new LoggerSpy.
func NewLoggerSpy() *LoggerSpy {
	return &LoggerSpy{records: make([]SpyLogRecord, 0)}
}

// Debug implements dedup.Logger.
func (s *LoggerSpy) Debug(msg string, args ...any) { s.record("debug", msg, args) }

// Info implements dedup.Logger.
func (s *LoggerSpy) Info(msg string, args ...any) { s.record("info", msg, args) }

// Warn implements dedup.Logger.
func (s *LoggerSpy) Warn(msg string, args ...any) { s.record("warn", msg, args) }

// Error implements dedup.Logger.
func (s *LoggerSpy) Error(msg string, args ...any) { s.record("error", msg, args) }

// DebugContext implements dedup.ContextualLogger.
func (s *LoggerSpy) DebugContext(_ context.Context, msg string, args ...any) {
	s.record("debug", msg, args)
}

// InfoContext implements dedup.ContextualLogger.
func (s *LoggerSpy) InfoContext(_ context.Context, msg string, args ...any) {
	s.record("info", msg, args)
}

// WarnContext implements dedup.ContextualLogger.
func (s *LoggerSpy) WarnContext(_ context.Context, msg string, args ...any) {
	s.record("warn", msg, args)
}

// ErrorContext implements dedup.ContextualLogger.
func (s *LoggerSpy) ErrorContext(_ context.Context, msg string, args ...any) {
	s.record("error", msg, args)
}

func (s *LoggerSpy) record(level, msg string, args []any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	argsCopy := make([]any, len(args))
	copy(argsCopy, args)

	s.records = append(s.records, SpyLogRecord{Level: level, Message: msg, Args: argsCopy})
}

// GetRecordCount returns the number of captured log records.
func (s *LoggerSpy) GetRecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}

// GetRecords returns a copy of all captured log records.
func (s *LoggerSpy) GetRecords() []SpyLogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]SpyLogRecord, len(s.records))
	copy(records, s.records)

	return records
}

// HasLog checks if there is a record at the given level whose message contains the substring.
func (s *LoggerSpy) HasLog(level, messagePart string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.records {
		if record.Level == level && strings.Contains(record.Message, messagePart) {
			return true
		}
	}

	return false
}

// Reset clears all captured log records.
func (s *LoggerSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = s.records[:0]
}

// Ensure LoggerSpy implements both logging interfaces.
var (
	_ dedup.Logger           = (*LoggerSpy)(nil)
	_ dedup.ContextualLogger = (*LoggerSpy)(nil)
)
