package deliver

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

type loggerFormatterText struct {
	TimeFormat string
}

// NewLoggerFormatterText function creates a formatter of one text line per entry.
func NewLoggerFormatterText(timeformat string) LoggerHandler {
	return &loggerFormatterText{
		TimeFormat: timeformat + " ",
	}
}

func (h *loggerFormatterText) HandlerPriority() int { return 30 }
func (h *loggerFormatterText) HandlerEntry(entry *LoggerEntry) {
	data := entry.Buffer[:0]
	data = entry.Time.AppendFormat(data, h.TimeFormat)
	data = append(data, DefaultLoggerLevelStrings[entry.Level]...)
	if entry.Message != "" {
		data = append(data, ' ')
		data = append(data, entry.Message...)
	}
	for i := range entry.Keys {
		data = append(data, ' ')
		data = append(data, entry.Keys[i]...)
		data = append(data, '=')
		data = appendText(data, entry.Vals[i])
	}
	entry.Buffer = append(data, '\n')
}

func appendText(data []byte, val any) []byte {
	switch v := val.(type) {
	case nil:
		return append(data, "null"...)
	case string:
		return appendTextString(data, v)
	case int:
		return strconv.AppendInt(data, int64(v), 10)
	case int64:
		return strconv.AppendInt(data, v, 10)
	case bool:
		return strconv.AppendBool(data, v)
	case error:
		return appendTextString(data, v.Error())
	case fmt.Stringer:
		return appendTextString(data, v.String())
	default:
		return appendTextString(data, fmt.Sprint(v))
	}
}

func appendTextString(data []byte, str string) []byte {
	for i := 0; i < len(str); i++ {
		if str[i] <= ' ' || str[i] == '"' || str[i] == '=' {
			return strconv.AppendQuote(data, str)
		}
	}
	return append(data, str...)
}

type loggerFormatterJSON struct {
	TimeFormat string
	KeyMessage []byte
	KeyTime    []byte
	KeyLevel   []byte
}

// NewLoggerFormatterJSON function creates a formatter of one JSON object per entry.
func NewLoggerFormatterJSON(timeformat string) LoggerHandler {
	return &loggerFormatterJSON{
		TimeFormat: timeformat,
		KeyTime:    []byte(`{"` + DefaultLoggerFormatterKeyTime + `":"`),
		KeyLevel:   []byte(`","` + DefaultLoggerFormatterKeyLevel + `":"`),
		KeyMessage: []byte(`,"` + DefaultLoggerFormatterKeyMessage + `":`),
	}
}

func (h *loggerFormatterJSON) HandlerPriority() int { return 30 }
func (h *loggerFormatterJSON) HandlerEntry(entry *LoggerEntry) {
	data := entry.Buffer[:0]
	data = append(data, h.KeyTime...)
	data = entry.Time.AppendFormat(data, h.TimeFormat)
	data = append(data, h.KeyLevel...)
	data = append(data, DefaultLoggerLevelStrings[entry.Level]...)
	data = append(data, '"')

	for i := range entry.Keys {
		data = append(data, ',')
		data = strconv.AppendQuote(data, entry.Keys[i])
		data = append(data, ':')
		data = appendJSON(data, entry.Vals[i])
	}
	if len(entry.Message) > 0 {
		data = append(data, h.KeyMessage...)
		data = appendJSON(data, entry.Message)
	}
	entry.Buffer = append(data, '}', '\n')
}

func appendJSON(data []byte, val any) []byte {
	switch v := val.(type) {
	case error:
		val = v.Error()
	case fmt.Stringer:
		val = v.String()
	}
	body, err := json.Marshal(val)
	if err != nil {
		return strconv.AppendQuote(data, fmt.Sprint(val))
	}
	return append(data, body...)
}

type loggerWriterStdout struct {
	sync.Mutex
}

// NewLoggerWriterStdout function creates a writer to os.Stdout.
func NewLoggerWriterStdout() LoggerHandler {
	return &loggerWriterStdout{}
}

func (h *loggerWriterStdout) HandlerPriority() int {
	return 90
}

func (h *loggerWriterStdout) HandlerEntry(entry *LoggerEntry) {
	h.Lock()
	_, _ = os.Stdout.Write(entry.Buffer)
	h.Unlock()
}

type loggerWriterFile struct {
	sync.Mutex
	File *os.File
}

// NewLoggerWriterFile function creates a writer appending to the file name.
func NewLoggerWriterFile(name string) (LoggerHandler, error) {
	err := os.MkdirAll(filepath.Dir(name), 0o755)
	if err != nil {
		return nil, err
	}
	file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	return &loggerWriterFile{File: file}, nil
}

func (h *loggerWriterFile) HandlerPriority() int {
	return 100
}

func (h *loggerWriterFile) HandlerEntry(entry *LoggerEntry) {
	h.Lock()
	_, _ = h.File.Write(entry.Buffer)
	h.Unlock()
}
