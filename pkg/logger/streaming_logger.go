package logger

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// LogBroadcaster receives log entries for admin-facing live tail.
type LogBroadcaster interface {
	AddLogEntry(entry interface{})
}

// StreamingLogger extends ColoredLogger with streaming to a LogBroadcaster.
type StreamingLogger struct {
	*ColoredLogger
	broadcaster LogBroadcaster
	connID      string
	sideID      string
	matchID     string
	metadata    map[string]string
}

// NewStreamingLogger creates a new streaming logger.
func NewStreamingLogger(context, color string, broadcaster LogBroadcaster) *StreamingLogger {
	return &StreamingLogger{
		ColoredLogger: NewColoredLogger(context, color),
		broadcaster:   broadcaster,
		metadata:      make(map[string]string),
	}
}

// SetConnID sets the connection ID for all subsequent log entries.
func (sl *StreamingLogger) SetConnID(connID string) {
	sl.connID = connID
}

// SetSideID sets the match side for all subsequent log entries.
func (sl *StreamingLogger) SetSideID(sideID string) {
	sl.sideID = sideID
}

// SetMatchID sets the match ID for all subsequent log entries.
func (sl *StreamingLogger) SetMatchID(matchID string) {
	sl.matchID = matchID
}

// SetMetadata adds metadata to all log entries.
func (sl *StreamingLogger) SetMetadata(key, value string) {
	sl.metadata[key] = value
}

// ClearMetadata removes all metadata.
func (sl *StreamingLogger) ClearMetadata() {
	sl.metadata = make(map[string]string)
}

func (sl *StreamingLogger) getCallSite() string {
	if pc, file, line, ok := runtime.Caller(4); ok {
		fn := runtime.FuncForPC(pc)
		if fn != nil {
			parts := strings.Split(file, "/")
			fileName := parts[len(parts)-1]
			return fmt.Sprintf("%s:%d", fileName, line)
		}
	}
	return ""
}

func (sl *StreamingLogger) streamLog(level LogLevel, format string, args ...interface{}) {
	if sl.broadcaster == nil {
		return
	}

	message := fmt.Sprintf(format, args...)

	metadata := make(map[string]string, len(sl.metadata))
	for k, v := range sl.metadata {
		metadata[k] = v
	}

	entry := map[string]interface{}{
		"timestamp": time.Now(),
		"level":     level.String(),
		"component": sl.context,
		"message":   message,
		"metadata":  metadata,
		"conn_id":   sl.connID,
		"side":      sl.sideID,
		"match_id":  sl.matchID,
		"call_site": sl.getCallSite(),
	}

	sl.broadcaster.AddLogEntry(entry)
}

func (sl *StreamingLogger) Debug(format string, args ...interface{}) {
	sl.ColoredLogger.Debug(format, args...)
	sl.streamLog(DEBUG, format, args...)
}

func (sl *StreamingLogger) Info(format string, args ...interface{}) {
	sl.ColoredLogger.Info(format, args...)
	sl.streamLog(INFO, format, args...)
}

func (sl *StreamingLogger) Warn(format string, args ...interface{}) {
	sl.ColoredLogger.Warn(format, args...)
	sl.streamLog(WARN, format, args...)
}

func (sl *StreamingLogger) Error(format string, args ...interface{}) {
	sl.ColoredLogger.Error(format, args...)
	sl.streamLog(ERROR, format, args...)
}

func (sl *StreamingLogger) Fatal(format string, args ...interface{}) {
	sl.ColoredLogger.Fatal(format, args...)
	sl.streamLog(FATAL, format, args...)
}

// InfoWithContext logs at INFO with a temporarily overridden conn/side/match
// triple, restoring the logger's prior context afterward.
func (sl *StreamingLogger) InfoWithContext(connID, sideID, matchID, format string, args ...interface{}) {
	oldConn, oldSide, oldMatch := sl.connID, sl.sideID, sl.matchID
	sl.connID, sl.sideID, sl.matchID = connID, sideID, matchID

	sl.Info(format, args...)

	sl.connID, sl.sideID, sl.matchID = oldConn, oldSide, oldMatch
}

// WarnWithContext is the WARN-level counterpart of InfoWithContext.
func (sl *StreamingLogger) WarnWithContext(connID, sideID, matchID, format string, args ...interface{}) {
	oldConn, oldSide, oldMatch := sl.connID, sl.sideID, sl.matchID
	sl.connID, sl.sideID, sl.matchID = connID, sideID, matchID

	sl.Warn(format, args...)

	sl.connID, sl.sideID, sl.matchID = oldConn, oldSide, oldMatch
}

// LogMatchEvent records a match-lifecycle event (bind, replay, close).
func (sl *StreamingLogger) LogMatchEvent(matchID, event string, metadata map[string]string) {
	sl.SetMatchID(matchID)
	for k, v := range metadata {
		sl.SetMetadata(k, v)
	}
	sl.Info("match event: %s", event)
	sl.ClearMetadata()
}

// LogAIDecision records a tiered AI decision for the audit trail.
func (sl *StreamingLogger) LogAIDecision(matchID, tier, decision string, metadata map[string]string) {
	sl.SetMatchID(matchID)
	sl.SetMetadata("tier", tier)
	for k, v := range metadata {
		sl.SetMetadata(k, v)
	}
	sl.Info("ai decision: %s", decision)
	sl.ClearMetadata()
}

// Global streaming loggers, mirroring the non-streaming set in colored_logger.go.
var (
	globalBroadcaster LogBroadcaster

	StreamingConnLogger  *StreamingLogger
	StreamingRoomLogger  *StreamingLogger
	StreamingMatchLogger *StreamingLogger
	StreamingAILogger    *StreamingLogger
	StreamingTestLogger  *StreamingLogger
)

// InitStreamingLoggers initializes all streaming loggers with a broadcaster.
func InitStreamingLoggers(broadcaster LogBroadcaster, level LogLevel, showCaller bool) {
	globalBroadcaster = broadcaster

	StreamingConnLogger = NewStreamingLogger("CONN", ColorBrightGreen, broadcaster)
	StreamingRoomLogger = NewStreamingLogger("ROOM", ColorBrightBlue, broadcaster)
	StreamingMatchLogger = NewStreamingLogger("MATCH", ColorBrightPurple, broadcaster)
	StreamingAILogger = NewStreamingLogger("AI", ColorBrightCyan, broadcaster)
	StreamingTestLogger = NewStreamingLogger("TEST", ColorBrightYellow, broadcaster)

	loggers := []*StreamingLogger{
		StreamingConnLogger,
		StreamingRoomLogger,
		StreamingMatchLogger,
		StreamingAILogger,
		StreamingTestLogger,
	}

	for _, l := range loggers {
		l.SetLevel(level)
		l.SetShowCaller(showCaller)
	}
}

// CreateStreamingAILogger creates a streaming logger for a specific AI tier.
func CreateStreamingAILogger(tier, color string) *StreamingLogger {
	return NewStreamingLogger(fmt.Sprintf("AI:%s", tier), color, globalBroadcaster)
}
