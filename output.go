package deliver

import (
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Output defines the operator and access log sink of the pipeline.
type Output interface {
	Print(args ...any)
	// Log is called once per completed request with its final status.
	Log(tx *Transaction, res *Resource)
}

// Transaction defines the log record of a request.
type Transaction struct {
	Time       time.Time
	Method     string
	URL        string
	Proto      string
	Host       string
	Address    string
	RequestID  string
	Status     int
	Size       int64
	Duration   time.Duration
	ServedWith string
	Location   string
	Error      error
}

// NewTransaction function creates the Transaction of r, the request id is
// read from X-Request-Id or created with uuid.
func NewTransaction(r *http.Request) *Transaction {
	tx := &Transaction{
		Time:      time.Now(),
		Method:    r.Method,
		URL:       r.URL.RequestURI(),
		Proto:     r.Proto,
		Host:      r.Host,
		Address:   r.RemoteAddr,
		RequestID: r.Header.Get(HeaderXRequestID),
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		tx.Address = host
	}
	if tx.RequestID == "" {
		tx.RequestID = uuid.New().String()
	}
	return tx
}

// OutputLogger defines the default Output writing to a [Logger].
type OutputLogger struct {
	Logger Logger
}

// NewOutputLogger function creates an Output using log.
func NewOutputLogger(log Logger) *OutputLogger {
	return &OutputLogger{Logger: log}
}

// Print method outputs an operator message at info level.
func (out *OutputLogger) Print(args ...any) {
	out.Logger.Info(args...)
}

var outputLoggerKeys = []string{
	"method", "path", "remote", "proto", "host",
	"status", "request-time", "size", "x-request-id",
}

// Log method outputs the access log, status 500+ uses error level.
func (out *OutputLogger) Log(tx *Transaction, res *Resource) {
	log := out.Logger.WithFields(outputLoggerKeys, []any{
		tx.Method, tx.URL, tx.Address, tx.Proto, tx.Host,
		tx.Status, tx.Duration.String(), tx.Size, tx.RequestID,
	})
	if tx.ServedWith != "" {
		log = log.WithField("served-with", tx.ServedWith)
	}
	if res != nil && res.Encoding != "" && tx.Size > 0 {
		log = log.WithField("encoding", res.Encoding)
	}
	if 300 < tx.Status && tx.Status < 400 && tx.Status != StatusNotModified {
		log = log.WithField("location", tx.Location)
	}
	if tx.Status < StatusInternalServerError {
		log.Info()
		return
	}
	if tx.Error != nil {
		log = log.WithField("error", tx.Error.Error())
	}
	log.Error()
}
