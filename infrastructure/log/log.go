// Package log implements subsystem-tagged, level-gated logging for the
// daemon, grounded on the teacher's logger/logger.go (per-subsystem loggers
// sharing one rotating backend). The teacher's version builds on its own
// internal logs.Logger package, which was not carried into this module; this
// is a self-contained equivalent that writes straight through
// github.com/jrick/logrotate/rotator, the same rotation library, so every
// subsystem still gets leveled, rotated output instead of a bare fmt.Println
// ambient stack.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/jrick/logrotate/rotator"
)

// Level is a logging severity, ordered from most to least verbose.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
	LevelOff
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRC"
	case LevelDebug:
		return "DBG"
	case LevelInfo:
		return "INF"
	case LevelWarn:
		return "WRN"
	case LevelError:
		return "ERR"
	case LevelCritical:
		return "CRT"
	default:
		return "OFF"
	}
}

// Subsystem tags, per SPEC_FULL's ambient-stack section: one logger per
// major component rather than one global logger, mirroring the teacher's
// SubsystemTags enum.
const (
	SubsystemConsensus     = "CONS"
	SubsystemReachability  = "REAC"
	SubsystemStorage       = "STOR"
	SubsystemTransaction   = "TXNS"
	SubsystemMempool       = "MPOOL"
	SubsystemPeer          = "PEER"
	SubsystemOrchestrator  = "PROC"
)

var (
	backendMu  sync.Mutex
	rotatorOut *rotator.Rotator
	level      = LevelInfo
)

// InitRotator opens the rotating log file every Logger writes through. Must
// be called once during daemon startup, before any subsystem logger is used
// in anger (a Logger used before InitRotator simply writes to stderr only,
// the same fallback the teacher's logWriter uses before initiated is set).
func InitRotator(logFile string, maxRolls int) error {
	backendMu.Lock()
	defer backendMu.Unlock()
	r, err := rotator.New(logFile, 10*1024, false, maxRolls)
	if err != nil {
		return err
	}
	rotatorOut = r
	return nil
}

// SetLevel sets the process-wide minimum level every subsystem logger
// honors.
func SetLevel(l Level) {
	backendMu.Lock()
	defer backendMu.Unlock()
	level = l
}

func currentLevel() Level {
	backendMu.Lock()
	defer backendMu.Unlock()
	return level
}

func writer() io.Writer {
	backendMu.Lock()
	defer backendMu.Unlock()
	if rotatorOut == nil {
		return os.Stderr
	}
	return rotatorOut
}

// Logger is one subsystem's tagged writer.
type Logger struct {
	subsystem string
}

// New returns a Logger tagged with subsystem (one of the Subsystem*
// constants, typically).
func New(subsystem string) *Logger {
	return &Logger{subsystem: subsystem}
}

func (l *Logger) log(lvl Level, format string, args ...interface{}) {
	if lvl < currentLevel() {
		return
	}
	line := fmt.Sprintf("%s [%s] %s %s\n", time.Now().UTC().Format(time.RFC3339Nano), lvl, l.subsystem, fmt.Sprintf(format, args...))
	w := writer()
	io.WriteString(w, line)
	if w != io.Writer(os.Stderr) {
		os.Stderr.WriteString(line)
	}
}

func (l *Logger) Tracef(format string, args ...interface{})    { l.log(LevelTrace, format, args...) }
func (l *Logger) Debugf(format string, args ...interface{})    { l.log(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})     { l.log(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})     { l.log(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{})    { l.log(LevelError, format, args...) }
func (l *Logger) Criticalf(format string, args ...interface{}) { l.log(LevelCritical, format, args...) }
