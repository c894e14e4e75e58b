package deliver

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// enum the logger levels.
const (
	LoggerDebug LoggerLevel = iota
	LoggerInfo
	LoggerWarning
	LoggerError
	LoggerFatal
	LoggerDiscard
)

// Logger defines the Logger interface to implement structured logging.
//
// The default implementation uses [NewLogger].
type Logger interface {
	Debug(args ...any)
	Info(args ...any)
	Warning(args ...any)
	Error(args ...any)
	// The Fatal method outputs the [LoggerFatal] log,
	// but does not stop the process.
	Fatal(args ...any)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warningf(format string, args ...any)
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)

	// The WithField method sets a logging field.
	//
	// If the key is "logger", modify the Logger data
	// but do not save the field.
	WithField(key string, val any) Logger
	// The WithFields method sets multiple properties.
	WithFields(keys []string, vals []any) Logger

	// The GetLevel method obtains the current Logger output level.
	GetLevel() LoggerLevel
	// The SetLevel method sets the current Logger output level.
	SetLevel(level LoggerLevel)
}

// LoggerLevel defines the [Logger] level.
type LoggerLevel int

// loggerStd defines the default Logger implementation.
type loggerStd struct {
	LoggerEntry
	Handlers []LoggerHandler
	Pool     *sync.Pool
	Logger   bool
	Caller   bool
}

// LoggerEntry defines logger entry data and buffer.
type LoggerEntry struct {
	Level   LoggerLevel
	Time    time.Time
	Message string
	Keys    []string
	Vals    []any
	Buffer  []byte
}

// LoggerHandler defines how to process [LoggerEntry].
type LoggerHandler interface {
	// The HandlerPriority method returns the Handler processing order,
	// with smaller values taking priority.
	HandlerPriority() int
	// The HandlerEntry method processes the Entry data
	// and ends subsequent processing after setting Level=LoggerDiscard.
	HandlerEntry(entry *LoggerEntry)
}

// LoggerConfig defines [NewLogger] configuration,
// initializes [Logger] and creates default [LoggerHandler].
//
// If Formatter is json/text, use [NewLoggerFormatterJSON] or
// [NewLoggerFormatterText].
//
// If Stdout is true and [DefaultLoggerWriterStdout],
// use [NewLoggerWriterStdout].
//
// If Path is not empty, use [NewLoggerWriterFile].
type LoggerConfig struct {
	// Custom LoggerHandler
	Handlers   []LoggerHandler `alias:"handlers" json:"-"`
	Level      LoggerLevel     `alias:"level" json:"level"`
	Caller     bool            `alias:"caller" json:"caller"`
	Stdout     bool            `alias:"stdout" json:"stdout"`
	Formatter  string          `alias:"formatter" json:"formatter"`
	TimeFormat string          `alias:"timeFormat" json:"timeFormat"`
	Path       string          `alias:"path" json:"path"`
}

// The NewLogger function creates default [Logger] using [LoggerConfig].
func NewLogger(config *LoggerConfig) Logger {
	if config == nil {
		config = &LoggerConfig{Stdout: true}
	}

	handlers := config.getHandlers()
	size := DefaultLoggerEntryFieldsLength
	buff := DefaultLoggerEntryBufferLength
	pool := &sync.Pool{}
	pool.New = func() any {
		return &loggerStd{
			Handlers: handlers,
			Pool:     pool,
			Caller:   config.Caller,
			LoggerEntry: LoggerEntry{
				Level:  config.Level,
				Keys:   make([]string, 0, size),
				Vals:   make([]any, 0, size),
				Buffer: make([]byte, 0, buff),
			},
		}
	}

	log := pool.New().(*loggerStd)
	log.Logger = true
	return log
}

func (c *LoggerConfig) getHandlers() []LoggerHandler {
	hs := append([]LoggerHandler{}, c.Handlers...)
	if c.TimeFormat == "" {
		c.TimeFormat = DefaultLoggerFormatterFormatTime
	}
	if c.Formatter == "" {
		c.Formatter = DefaultLoggerFormatter
	}
	switch strings.ToLower(c.Formatter) {
	case "json":
		hs = append(hs, NewLoggerFormatterJSON(c.TimeFormat))
	case "text":
		hs = append(hs, NewLoggerFormatterText(c.TimeFormat))
	}

	if c.Stdout && DefaultLoggerWriterStdout {
		hs = append(hs, NewLoggerWriterStdout())
	}
	if path := strings.TrimSpace(c.Path); path != "" {
		h, err := NewLoggerWriterFile(path)
		if err != nil {
			panic(err)
		}
		hs = append(hs, h)
	}
	sort.SliceStable(hs, func(i, j int) bool {
		return hs[i].HandlerPriority() < hs[j].HandlerPriority()
	})
	return hs
}

// NewLoggerNull defines empty log output and discards all logs.
func NewLoggerNull() Logger {
	return NewLogger(&LoggerConfig{
		Level:     LoggerDiscard,
		Formatter: "disable",
	})
}

// The NewLoggerWithContext function gets the Logger from the
// [context.Context] [ContextKeyLogger].
//
// If the Logger cannot be get, the [DefaultLoggerNull] object is returned.
func NewLoggerWithContext(ctx context.Context) Logger {
	log, ok := ctx.Value(ContextKeyLogger).(Logger)
	if ok {
		return log
	}
	return DefaultLoggerNull
}

func (log *loggerStd) GetLevel() LoggerLevel {
	return log.Level
}

func (log *loggerStd) SetLevel(level LoggerLevel) {
	log.Level = level
}

func (log *loggerStd) Debug(args ...any) {
	log.format(LoggerDebug, args...)
}

func (log *loggerStd) Info(args ...any) {
	log.format(LoggerInfo, args...)
}

func (log *loggerStd) Warning(args ...any) {
	log.format(LoggerWarning, args...)
}

func (log *loggerStd) Error(args ...any) {
	log.format(LoggerError, args...)
}

func (log *loggerStd) Fatal(args ...any) {
	log.format(LoggerFatal, args...)
}

func (log *loggerStd) Debugf(format string, args ...any) {
	log.formatf(LoggerDebug, format, args...)
}

func (log *loggerStd) Infof(format string, args ...any) {
	log.formatf(LoggerInfo, format, args...)
}

func (log *loggerStd) Warningf(format string, args ...any) {
	log.formatf(LoggerWarning, format, args...)
}

func (log *loggerStd) Errorf(format string, args ...any) {
	log.formatf(LoggerError, format, args...)
}

func (log *loggerStd) Fatalf(format string, args ...any) {
	log.formatf(LoggerFatal, format, args...)
}

// The WithFields method sets multiple properties.
func (log *loggerStd) WithFields(key []string, value []any) Logger {
	if log.Logger {
		log = log.getLogger()
	}
	log.Keys = append(log.Keys, key...)
	log.Vals = append(log.Vals, value...)
	return log
}

// The WithField method sets a logging field.
//
// If the key is "logger" and the value is bool(true), LoggerEntry will be set
// to Logger and can be reused for multiple outputs.
//
// If the key is "time" and the value type is time.time,
// set the time attribute of the log output.
func (log *loggerStd) WithField(key string, value any) Logger {
	if log.Logger {
		log = log.getLogger()
	}
	switch key {
	case "logger":
		val, ok := value.(bool)
		if ok && val {
			log.Logger = true
			return log
		}
	case "time":
		val, ok := value.(time.Time)
		if ok {
			log.Time = val
			return log
		}
	}
	log.Keys = append(log.Keys, key)
	log.Vals = append(log.Vals, value)
	return log
}

func (log *loggerStd) getLogger() *loggerStd {
	entry := log.Pool.Get().(*loggerStd)
	entry.Time = time.Now()
	entry.Message = ""
	entry.Logger = false
	entry.Keys = entry.Keys[:0]
	entry.Vals = entry.Vals[:0]
	entry.Buffer = entry.Buffer[:0]
	entry.Level = log.Level
	entry.Caller = log.Caller
	if len(log.Keys) > 0 {
		entry.Keys = append(entry.Keys, log.Keys...)
		entry.Vals = append(entry.Vals, log.Vals...)
	}
	return entry
}

func (log *loggerStd) format(level LoggerLevel, args ...any) {
	if log.Level <= level {
		if log.Logger {
			log = log.getLogger()
		}
		log.Level = level
		log.Message = fmt.Sprintln(args...)
		log.Message = log.Message[:len(log.Message)-1]
		log.handler()
		log.Pool.Put(log)
	}
}

func (log *loggerStd) formatf(level LoggerLevel, format string, args ...any) {
	if log.Level <= level {
		if log.Logger {
			log = log.getLogger()
		}
		log.Level = level
		log.Message = fmt.Sprintf(format, args...)
		log.handler()
		log.Pool.Put(log)
	}
}

func (log *loggerStd) handler() {
	if len(log.Keys) > len(log.Vals) {
		log.Keys = log.Keys[0:len(log.Vals)]
		log.Keys = append(log.Keys, "error")
		log.Vals = append(log.Vals,
			"Logger: The number of field keys and values are not equal",
		)
	}

	if len(log.Message) > 0 || len(log.Keys) > 0 {
		if log.Caller {
			fname, file := GetCallerFuncFile(4)
			if fname != "" {
				log.Keys = append(log.Keys, "func")
				log.Vals = append(log.Vals, fname)
			}
			if file != "" {
				log.Keys = append(log.Keys, "file")
				log.Vals = append(log.Vals, file)
			}
		}

		for _, h := range log.Handlers {
			if log.Level < LoggerDiscard {
				h.HandlerEntry(&log.LoggerEntry)
			}
		}
	}
}

// The String method implements the [fmt.Stringer] interface and formats level.
func (l LoggerLevel) String() string {
	return DefaultLoggerLevelStrings[l]
}

// The MarshalText method implements [the encoding.TextMarshaler] interface.
func (l LoggerLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// The UnmarshalText method implements the [encoding.TextUnmarshaler] interface.
func (l *LoggerLevel) UnmarshalText(text []byte) error {
	str := strings.ToUpper(string(text))
	for i, s := range DefaultLoggerLevelStrings {
		if s == str {
			*l = LoggerLevel(i)
			return nil
		}
	}
	n, err := strconv.Atoi(str)
	if err == nil && n < len(DefaultLoggerLevelStrings) && n > -1 {
		*l = LoggerLevel(n)
		return nil
	}
	return fmt.Errorf(ErrLoggerLevelUnmarshalText, text)
}

var works = [...]string{"/pkg/mod/", "/src/"}

func trimFileName(name string) string {
	for _, w := range works {
		pos := strings.Index(name, w)
		if pos != -1 {
			name = name[pos+len(w):]
		}
	}
	return name
}

func trimFuncName(name string) string {
	pos := strings.LastIndexByte(name, '/')
	if pos != -1 {
		name = name[pos+1:]
	}
	return name
}

// The GetCallerFuncFile function obtains the called file location and
// function name.
func GetCallerFuncFile(depth int) (string, string) {
	var pcs [1]uintptr
	runtime.Callers(depth+1, pcs[:])
	fs := runtime.CallersFrames(pcs[:])
	f, _ := fs.Next()

	return trimFuncName(f.Function),
		trimFileName(f.File + ":" + strconv.Itoa(f.Line))
}
