package kernel

import (
	"fmt"
	"strings"
	"sync"
)

// LineWriter receives formatted log lines. hal.Logger satisfies it.
type LineWriter interface {
	WriteLineString(s string)
}

// LogCategory names one kernel subsystem for logging.
type LogCategory uint8

const (
	LogSched LogCategory = iota
	LogSync
	LogSignal
	LogIRQ
	LogSyscall

	numLogCategories
)

var logCategoryNames = [numLogCategories]string{"sched", "sync", "signal", "irq", "syscall"}

func (c LogCategory) String() string {
	if c < numLogCategories {
		return logCategoryNames[c]
	}
	return "unknown"
}

// LogLevel filters messages per category.
type LogLevel uint8

const (
	LogOff LogLevel = iota
	LogError
	LogInfo
	LogDebug
)

func (l LogLevel) String() string {
	switch l {
	case LogOff:
		return "off"
	case LogError:
		return "error"
	case LogInfo:
		return "info"
	case LogDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseLogLevel accepts the names printed by LogLevel.String.
func ParseLogLevel(s string) (LogLevel, bool) {
	for l := LogOff; l <= LogDebug; l++ {
		if strings.EqualFold(s, l.String()) {
			return l, true
		}
	}
	return LogOff, false
}

// ParseLogCategory accepts the names printed by LogCategory.String.
func ParseLogCategory(s string) (LogCategory, bool) {
	for c := LogCategory(0); c < numLogCategories; c++ {
		if strings.EqualFold(s, c.String()) {
			return c, true
		}
	}
	return 0, false
}

// LogRegistry holds the kernel's log categories and where their lines go.
// Logf may be called with the kernel critical section held, so the writer
// must not call back into the kernel.
type LogRegistry struct {
	mu     sync.Mutex
	w      LineWriter
	levels [numLogCategories]LogLevel
}

// NewLogRegistry returns a registry logging errors of every category to w.
// A nil w discards.
func NewLogRegistry(w LineWriter) *LogRegistry {
	r := &LogRegistry{w: w}
	for i := range r.levels {
		r.levels[i] = LogError
	}
	return r
}

func (r *LogRegistry) SetWriter(w LineWriter) {
	r.mu.Lock()
	r.w = w
	r.mu.Unlock()
}

func (r *LogRegistry) SetLevel(c LogCategory, l LogLevel) {
	if c >= numLogCategories {
		return
	}
	r.mu.Lock()
	r.levels[c] = l
	r.mu.Unlock()
}

// SetAll sets every category to l.
func (r *LogRegistry) SetAll(l LogLevel) {
	r.mu.Lock()
	for i := range r.levels {
		r.levels[i] = l
	}
	r.mu.Unlock()
}

func (r *LogRegistry) Level(c LogCategory) LogLevel {
	if c >= numLogCategories {
		return LogOff
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.levels[c]
}

// Enabled reports whether a message at l in c would be written.
func (r *LogRegistry) Enabled(c LogCategory, l LogLevel) bool {
	if c >= numLogCategories || l == LogOff {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.w != nil && l <= r.levels[c]
}

// Logf writes one "[category] message" line when enabled.
func (r *LogRegistry) Logf(c LogCategory, l LogLevel, format string, args ...any) {
	if c >= numLogCategories || l == LogOff {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil || l > r.levels[c] {
		return
	}
	r.w.WriteLineString("[" + c.String() + "] " + fmt.Sprintf(format, args...))
}
