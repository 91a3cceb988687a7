// Package logging provides real-time console output for a ledger node.
// The replicated log is THE record of what happened; this package only
// narrates local progress (operations applied, rejections, replay,
// notification delivery) for operators watching a node.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logger provides structured logging to stdout.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	nodeID    string
}

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// New creates a new Logger.
func New() *Logger {
	return &Logger{
		output:   os.Stdout,
		minLevel: LevelInfo,
	}
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
		nodeID:    l.nodeID,
	}
}

// WithNodeID returns a new logger tagged with the local node identity.
func (l *Logger) WithNodeID(nodeID string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: l.component,
		nodeID:    nodeID,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats a map of fields as key=value pairs.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	var parts []string
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return " " + strings.Join(parts, " ")
}

// log writes a log entry: LEVEL TIMESTAMP [component] message key=value ...
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		fieldStr = formatFields(fields[0])
	}
	if l.nodeID != "" {
		fieldStr += " node=" + l.nodeID
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}

// --- Ledger event helpers ---
// Called by the node as it works through the ordered operation stream.

// OpApplied logs a successfully applied transaction.
func (l *Logger) OpApplied(method string, seq uint64, taskID string) {
	l.Info("op_applied", map[string]interface{}{
		"method": method,
		"seq":    seq,
		"task":   taskID,
	})
}

// OpRejected logs an operation the state machine refused.
func (l *Logger) OpRejected(method string, seq uint64, err error) {
	fields := map[string]interface{}{
		"method": method,
		"seq":    seq,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Warn("op_rejected", fields)
}

// ReplayStart logs the beginning of log replay after startup.
func (l *Logger) ReplayStart(fromSeq uint64) {
	l.Info("replay_start", map[string]interface{}{
		"from_seq": fromSeq,
	})
}

// ReplayComplete logs the end of log replay.
func (l *Logger) ReplayComplete(lastSeq uint64, applied int, duration time.Duration) {
	l.Info("replay_complete", map[string]interface{}{
		"last_seq": lastSeq,
		"applied":  applied,
		"duration": duration.String(),
	})
}

// NotifyDropped logs a broadcast event that could not be delivered.
// Delivery is best-effort, so this is debug-level noise, not an error.
func (l *Logger) NotifyDropped(eventType string, reason string) {
	l.Debug("notify_dropped", map[string]interface{}{
		"type":   eventType,
		"reason": reason,
	})
}

// PeerConnected logs a peer attaching to the notification channel.
func (l *Logger) PeerConnected(peerID string) {
	l.Info("peer_connected", map[string]interface{}{
		"peer": peerID,
	})
}

// PeerDisconnected logs a peer detaching from the notification channel.
func (l *Logger) PeerDisconnected(peerID string) {
	l.Info("peer_disconnected", map[string]interface{}{
		"peer": peerID,
	})
}
