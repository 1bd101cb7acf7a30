// Package monitoring holds the process-wide log streams and Prometheus
// collectors shared by the targeting pipeline.
package monitoring

import (
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogWriters holds the io.Writers for each logging stream.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

var (
	mu          sync.RWMutex
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

func init() {
	// Until main configures the streams, only ops messages are emitted.
	opsLogger = newLogger(log.Writer())
}

// SetLogWriters configures all three logging streams at once.
// Pass nil for any writer to disable that stream.
func SetLogWriters(w LogWriters) {
	mu.Lock()
	defer mu.Unlock()
	opsLogger = newLogger(w.Ops)
	diagLogger = newLogger(w.Diag)
	traceLogger = newLogger(w.Trace)
}

func newLogger(w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, "[autofire] ", log.LstdFlags|log.Lmicroseconds)
}

// Opsf logs to the ops stream (actionable warnings, failed sectors,
// abandoned attempts).
func Opsf(format string, args ...interface{}) {
	mu.RLock()
	l := opsLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// Diagf logs to the diag stream (fits, solutions, fire submissions).
func Diagf(format string, args ...interface{}) {
	mu.RLock()
	l := diagLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// Tracef logs to the trace stream (per-object sightings).
func Tracef(format string, args ...interface{}) {
	mu.RLock()
	l := traceLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// Stream levels accepted by WritersForLevel, from least to most verbose.
const (
	LevelOps   = "ops"
	LevelDiag  = "diag"
	LevelTrace = "trace"
)

// WritersForLevel routes every stream up to and including level to w and
// mutes the rest. An empty level means ops only.
func WritersForLevel(level string, w io.Writer) (LogWriters, error) {
	switch strings.ToLower(level) {
	case "", LevelOps:
		return LogWriters{Ops: w}, nil
	case LevelDiag:
		return LogWriters{Ops: w, Diag: w}, nil
	case LevelTrace:
		return LogWriters{Ops: w, Diag: w, Trace: w}, nil
	default:
		return LogWriters{}, fmt.Errorf("unknown log level %q (want ops, diag or trace)", level)
	}
}

// RotatingFile returns a size-rotated log file writer. The caller closes it
// on shutdown.
func RotatingFile(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Clean(path),
		MaxSize:    32, // MB
		MaxBackups: 3,
		MaxAge:     14,
		Compress:   true,
	}
}
