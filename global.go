package deliver

import (
	"errors"
	"os"
	"time"
)

// ContextKey defines the key type of the [context.Context] values of this
// package.
type ContextKey struct {
	name string
}

// NewContextKey function creates a ContextKey named key.
func NewContextKey(key string) ContextKey {
	return ContextKey{name: key}
}

func (key ContextKey) String() string {
	return key.name
}

// ContextKeyLogger defines the key of the [Logger] read by
// [NewLoggerWithContext].
var ContextKeyLogger = NewContextKey("logger")

var (
	// DefaultConfigEnvPrefix defines the default prefix used by
	// [NewConfigParseEnvs].
	DefaultConfigEnvPrefix = "ENV_"
	// DefaultConfigKeyPath defines the arg and env key naming the JSON
	// config file read by [NewConfigParseJSON].
	DefaultConfigKeyPath = "config"
	// DefaultEnvironmentRedirectCode defines the status used by
	// [Environment.Redirect] when no code is given.
	DefaultEnvironmentRedirectCode = StatusFound
	// DefaultHandlerReplyTimeout defines how long the pipeline waits for a
	// [Router] to complete a [Reply] when [Config.ReplyTimeout] is zero.
	DefaultHandlerReplyTimeout = 60 * time.Second
	// DefaultLoggerEntryBufferLength defines the [LoggerEntry] buffer length.
	DefaultLoggerEntryBufferLength = 2048
	// DefaultLoggerEntryFieldsLength defines the number of
	// [LoggerEntry] fields preallocated.
	DefaultLoggerEntryFieldsLength = 4
	// DefaultLoggerFormatter defines the log format for Logger.
	DefaultLoggerFormatter = "text"
	// DefaultLoggerFormatterFormatTime defines the time format for log output.
	DefaultLoggerFormatterFormatTime = "2006-01-02 15:04:05.000"
	// DefaultLoggerFormatterKeyLevel defines the level field output name.
	DefaultLoggerFormatterKeyLevel = "level"
	// DefaultLoggerFormatterKeyMessage defines the message field output name.
	DefaultLoggerFormatterKeyMessage = "message"
	// DefaultLoggerFormatterKeyTime defines the Time field output name.
	DefaultLoggerFormatterKeyTime = "time"
	// DefaultLoggerLevelStrings global defines the log level output strings.
	DefaultLoggerLevelStrings = [...]string{
		"DEBUG", "INFO", "WARNING", "ERROR", "FATAL", "DISCARD",
	}
	// DefaultLoggerNull defines a null log outputter.
	DefaultLoggerNull = NewLoggerNull()
	// DefaultLoggerWriterStdout defines whether to output to [os.Stdout].
	DefaultLoggerWriterStdout = os.Getenv("DELIVER_DAEMON") == ""
	// DefaultParserIndex defines the file appended to directory requests.
	DefaultParserIndex = "index.html"
	// DefaultRateCleanupInterval defines how often idle rate visitors
	// are checked.
	DefaultRateCleanupInterval = time.Minute
	// DefaultRateVisitorTTL defines when an idle rate visitor is removed.
	DefaultRateVisitorTTL = 3 * time.Minute
	// DefaultResponseSourceMapPrefix defines the x-sourcemap path prefix.
	DefaultResponseSourceMapPrefix = "/scripts-maps/"
	// DefaultServerReadTimeout and friends define the [http.Server] timeouts
	// used when [ServerConfig] leaves them zero.
	DefaultServerReadTimeout       = 60 * time.Second
	DefaultServerReadHeaderTimeout = 60 * time.Second
	DefaultServerWriteTimeout      = 60 * time.Second
	DefaultServerIdleTimeout       = 60 * time.Second
	// DefaultServerShutdownWait global defines the waiting time for
	// [Server.Stop] when called by [App].
	DefaultServerShutdownWait = 30 * time.Second
	// DefaultSessionName defines the session cookie name.
	DefaultSessionName = "sessionid"
	// DefaultSessionMaxAge defines the session lifetime in seconds.
	DefaultSessionMaxAge = 3600
	// DefaultSessionCleanupInterval defines how often [SessionMap]
	// purges expired sessions.
	DefaultSessionCleanupInterval = time.Minute
	// DefaultRouterStaticCacheSize defines the largest file kept by the
	// [RouterStatic] content cache.
	DefaultRouterStaticCacheSize int64 = 4 << 20 // 4M

	ErrEnvironmentFinished = errors.New("Environment: response has finished, mutation ignored")
	ErrReplyTimeout        = errors.New("Reply: router did not reply in time")
	ErrResourceNotFound    = errors.New("Resource: not found")
	ErrResourceNotAllowed  = errors.New("Resource: not allowed")
	ErrRouterPanic         = errors.New("Router: load panic")
	ErrServerAddressInUse  = errors.New("Server: address already in use")
	ErrServerNoListener    = errors.New("Server: no listener is up")
	ErrServerRunning       = errors.New("Server: server is not stopped")

	ErrConfigParseError          = "Config: parse func %d error: %w"
	ErrConfigSetInvalidPath      = "Config: set path '%s' is invalid"
	ErrConfigSetInvalidValue     = "Config: set path '%s' value '%s' error: %w"
	ErrLoggerLevelUnmarshalText  = "LoggerLevel: UnmarshalText invalid data: %s"
	ErrRateTrustedProxyFormat    = "Rate: parse trusted proxy '%s' error: %w"
	ErrRouterPanicFormat         = "%w: %v"
	ErrServerListenFormat        = "Server: listen %s %s error: %w"
	ErrServerLoadCertificate     = "Server: load https certificate error: %w"
	ErrSessionGorillaStoreFormat = "SessionGorilla: get session '%s' error: %w"
)

// Status codes used by the pipeline.
const (
	StatusOK                  = 200
	StatusFound               = 302
	StatusNotModified         = 304
	StatusNotFound            = 404
	StatusTooManyRequests     = 429
	StatusInternalServerError = 500
)

// Header names read or written by the pipeline.
const (
	HeaderAcceptEncoding  = "Accept-Encoding"
	HeaderCacheControl    = "Cache-Control"
	HeaderContentEncoding = "Content-Encoding"
	HeaderContentLength   = "Content-Length"
	HeaderContentType     = "Content-Type"
	HeaderETag            = "Etag"
	HeaderIfNoneMatch     = "If-None-Match"
	HeaderLastModified    = "Last-Modified"
	HeaderLocation        = "Location"
	HeaderVary            = "Vary"
	HeaderXForwardedFor   = "X-Forwarded-For"
	HeaderXRequestID      = "X-Request-Id"
	HeaderXSourceMap      = "x-sourcemap"
)

// Content encodings selected by [ParserStd] and applied by [Responder].
const (
	EncodingGzip    = "gzip"
	EncodingDeflate = "deflate"
)

// MimeTextPlain is the type of resources the parser could not resolve.
const MimeTextPlain = "text/plain"
