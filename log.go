package qdb

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/purego"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger atomic.Pointer[zap.Logger]

func init() {
	logger.Store(zap.NewNop())
}

// SetLogger replaces the package logger. A nil logger silences it.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger.Store(l)
}

// Logger returns the package logger.
func Logger() *zap.Logger {
	return logger.Load()
}

// LogConfig represents logger configuration
type LogConfig struct {
	Level       string   `yaml:"level"`
	Development bool     `yaml:"development"`
	Encoding    string   `yaml:"encoding"` // json or console
	OutputPaths []string `yaml:"output_paths"`
}

// NewLogger creates a new zap logger
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	levelName := cfg.Level
	if levelName == "" {
		levelName = "info"
	}
	level, err := zapcore.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if cfg.Development {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "json"
	}
	outputPaths := cfg.OutputPaths
	if len(outputPaths) == 0 {
		outputPaths = []string{"stderr"}
	}

	zapCfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Development,
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	l, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return l.Named("qdb"), nil
}

// ------------------------- native log forwarding -------------------------

type nativeLogEntry struct {
	level   NativeLogLevel
	pid     uint64
	tid     uint64
	message string
}

// The native side may call back at any time, including from inside a call
// that holds a critical view, so entries are only buffered here and written
// to zap by flushNativeLog.
var nativeLog struct {
	mu      sync.Mutex
	entries []nativeLogEntry
	dropped int

	// reg serializes registration. It is held across the native add and
	// remove calls, which may log synchronously, so onNativeLog never takes it.
	reg        sync.Mutex
	callback   uintptr
	callbackID uintptr
	registered bool
}

const nativeLogLimit = 4096

var nativeLogCallbackOnce sync.Once

func onNativeLog(level, date, pid, tid, msg, size uintptr) {
	_ = date // y/m/d/h/m/s array; zap stamps its own time
	entry := nativeLogEntry{
		level:   NativeLogLevel(int32(level)),
		pid:     uint64(pid),
		tid:     uint64(tid),
		message: copyNativeString(msg, int(size)),
	}
	nativeLog.mu.Lock()
	defer nativeLog.mu.Unlock()
	if len(nativeLog.entries) >= nativeLogLimit {
		nativeLog.dropped++
		return
	}
	nativeLog.entries = append(nativeLog.entries, entry)
}

// EnableNativeLog forwards messages logged by the native library to the
// package logger. Messages are written at the end of each call into the
// library.
func EnableNativeLog() error {
	if err := ensureLibrary(); err != nil {
		return err
	}
	nativeLogCallbackOnce.Do(func() {
		// purego callbacks are never freed, so create exactly one
		nativeLog.callback = purego.NewCallback(onNativeLog)
	})

	nativeLog.reg.Lock()
	defer nativeLog.reg.Unlock()
	if nativeLog.registered {
		return nil
	}
	var id uintptr
	code := ErrorCode(c_qdb_log_add_callback(nativeLog.callback, unsafe.Pointer(&id)))
	if code.Failure() {
		return newLocalError(code, qdb_error(code))
	}
	nativeLog.callbackID = id
	nativeLog.registered = true
	return nil
}

// DisableNativeLog stops forwarding and flushes what is buffered.
func DisableNativeLog() error {
	nativeLog.reg.Lock()
	if !nativeLog.registered {
		nativeLog.reg.Unlock()
		return nil
	}
	code := ErrorCode(c_qdb_log_remove_callback(nativeLog.callbackID))
	nativeLog.registered = false
	nativeLog.reg.Unlock()

	flushNativeLog()
	if code.Failure() {
		return newLocalError(code, qdb_error(code))
	}
	return nil
}

func flushNativeLog() {
	nativeLog.mu.Lock()
	entries, dropped := nativeLog.entries, nativeLog.dropped
	nativeLog.entries, nativeLog.dropped = nil, 0
	nativeLog.mu.Unlock()

	if len(entries) == 0 && dropped == 0 {
		return
	}
	l := Logger().With(zap.String("source", "native"))
	for _, e := range entries {
		if ce := l.Check(e.level.zapLevel(), e.message); ce != nil {
			ce.Write(zap.Uint64("pid", e.pid), zap.Uint64("tid", e.tid))
		}
	}
	if dropped > 0 {
		l.Warn("native log messages dropped", zap.Int("count", dropped))
	}
}

func (l NativeLogLevel) zapLevel() zapcore.Level {
	switch {
	case l >= NativeLogError:
		return zapcore.ErrorLevel
	case l >= NativeLogWarning:
		return zapcore.WarnLevel
	case l >= NativeLogInfo:
		return zapcore.InfoLevel
	}
	return zapcore.DebugLevel
}
