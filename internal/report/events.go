package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents the type of event
type EventType string

const (
	EventRun       EventType = "run"
	EventSource    EventType = "source"
	EventSkip      EventType = "skip"
	EventDedupe    EventType = "dedupe"
	EventJoin      EventType = "join"
	EventAging     EventType = "aging"
	EventBadDate   EventType = "bad_date"
	EventSave      EventType = "save"
	EventPartition EventType = "partition"
	EventExport    EventType = "export"
	EventError     EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

var zerologLevel = map[EventLevel]zerolog.Level{
	LevelDebug:   zerolog.DebugLevel,
	LevelInfo:    zerolog.InfoLevel,
	LevelWarning: zerolog.WarnLevel,
	LevelError:   zerolog.ErrorLevel,
}

// Event represents a single event in a reconciliation run
type Event struct {
	Level     EventLevel
	Event     EventType
	RunID     string
	Source    string
	Rows      int
	Columns   int
	Dropped   int
	Matched   int
	Unmatched int
	Owner     string
	Path      string
	Duration  time.Duration
	Error     string
	Message   string
	Extra     map[string]string
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	logger   zerolog.Logger
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s.jsonl", timestamp)
	path := filepath.Join(outputDir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		logger:   zerolog.New(file).With().Timestamp().Logger(),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) {
	if l == nil || l.file == nil {
		return
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.logger.WithLevel(zerologLevel[event.Level]).Str("event", string(event.Event))
	if event.RunID != "" {
		e = e.Str("run_id", event.RunID)
	}
	if event.Source != "" {
		e = e.Str("source", event.Source)
	}
	if event.Rows > 0 {
		e = e.Int("rows", event.Rows)
	}
	if event.Columns > 0 {
		e = e.Int("columns", event.Columns)
	}
	if event.Dropped > 0 {
		e = e.Int("dropped", event.Dropped)
	}
	if event.Event == EventJoin {
		e = e.Int("matched", event.Matched).Int("unmatched", event.Unmatched)
	}
	if event.Owner != "" {
		e = e.Str("owner", event.Owner)
	}
	if event.Path != "" {
		e = e.Str("path", event.Path)
	}
	if event.Duration > 0 {
		e = e.Int64("duration_ms", event.Duration.Milliseconds())
	}
	if event.Error != "" {
		e = e.Str("error", event.Error)
	}
	if len(event.Extra) > 0 {
		e = e.Interface("extra", event.Extra)
	}
	e.Msg(event.Message)
}

// LogRun logs the start of a run
func (l *EventLogger) LogRun(runID string, sources []string, processedOn time.Time) {
	l.Log(&Event{
		Level: LevelInfo,
		Event: EventRun,
		RunID: runID,
		Extra: map[string]string{
			"sources":      fmt.Sprintf("%v", sources),
			"processed_on": processedOn.Format("2006-01-02"),
		},
	})
}

// LogSource logs a parsed source table
func (l *EventLogger) LogSource(runID, source string, rows, columns int) {
	l.Log(&Event{
		Level:   LevelInfo,
		Event:   EventSource,
		RunID:   runID,
		Source:  source,
		Rows:    rows,
		Columns: columns,
	})
}

// LogSkip logs an optional source that was not uploaded
func (l *EventLogger) LogSkip(runID, source string) {
	l.Log(&Event{
		Level:   LevelInfo,
		Event:   EventSkip,
		RunID:   runID,
		Source:  source,
		Message: "source not present, join skipped",
	})
}

// LogDedupe logs duplicate rows dropped from a source
func (l *EventLogger) LogDedupe(runID, source string, kept, dropped int) {
	level := LevelDebug
	if dropped > 0 {
		level = LevelWarning
	}
	l.Log(&Event{
		Level:   level,
		Event:   EventDedupe,
		RunID:   runID,
		Source:  source,
		Rows:    kept,
		Dropped: dropped,
	})
}

// LogJoin logs the outcome of one left join
func (l *EventLogger) LogJoin(runID, source string, matched, unmatched int) {
	l.Log(&Event{
		Level:     LevelInfo,
		Event:     EventJoin,
		RunID:     runID,
		Source:    source,
		Matched:   matched,
		Unmatched: unmatched,
	})
}

// LogAging logs the aging column computation
func (l *EventLogger) LogAging(runID string, rows, invalid int) {
	level := LevelInfo
	if invalid > 0 {
		level = LevelWarning
	}
	l.Log(&Event{
		Level: level,
		Event: EventAging,
		RunID: runID,
		Rows:  rows,
		Extra: map[string]string{"invalid": fmt.Sprintf("%d", invalid)},
	})
}

// LogBadDate logs an unreadable date that was blanked
func (l *EventLogger) LogBadDate(runID string, err error) {
	l.Log(&Event{
		Level: LevelWarning,
		Event: EventBadDate,
		RunID: runID,
		Error: err.Error(),
	})
}

// LogSave logs the combined table being persisted
func (l *EventLogger) LogSave(runID string, rows, columns int, duration time.Duration) {
	l.Log(&Event{
		Level:    LevelInfo,
		Event:    EventSave,
		RunID:    runID,
		Rows:     rows,
		Columns:  columns,
		Duration: duration,
	})
}

// LogPartition logs one owner's export table
func (l *EventLogger) LogPartition(owner string, rows int) {
	l.Log(&Event{
		Level: LevelInfo,
		Event: EventPartition,
		Owner: owner,
		Rows:  rows,
	})
}

// LogExport logs a written export archive
func (l *EventLogger) LogExport(path string, owners, rows int) {
	l.Log(&Event{
		Level: LevelInfo,
		Event: EventExport,
		Path:  path,
		Rows:  rows,
		Extra: map[string]string{"owners": fmt.Sprintf("%d", owners)},
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, runID string, err error) {
	l.Log(&Event{
		Level: LevelError,
		Event: event,
		RunID: runID,
		Error: err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
