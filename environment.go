package deliver

import (
	"net"
	"net/http"
	"net/url"
	"sync"
)

// Environment defines the per-request context handed to routers.
//
// The mutation methods act on the response and resource given to
// [BuildEnvironment] and are rejected with [ErrEnvironmentFinished] once
// the response has been written.
type Environment struct {
	Method string
	// Header is the request header, it must not be modified.
	Header     http.Header
	Type       string
	Connection *Connection
	URL        *EnvironmentURL
	Session    *EnvironmentSession

	mu       sync.Mutex
	finished bool
	writer   http.ResponseWriter
	resource *Resource
}

// Connection defines the socket information of the request,
// Family is IPv4 or IPv6.
type Connection struct {
	Address string
	Family  string
	Local   string
}

// EnvironmentURL defines the url information exposed to routers.
type EnvironmentURL struct {
	Raw         string
	Dirs        []string
	QueryString string
	Query       url.Values
}

// EnvironmentSession defines the session facade of an [Environment].
//
// Get and Set delegate to the [SessionData] loaded by Start from the
// process-wide [Session].
type EnvironmentSession struct {
	env   *Environment
	store Session
	data  SessionData
}

// BuildEnvironment function creates the Environment of res and assigns
// res.Env. A nil res is ignored.
func BuildEnvironment(res *Resource, w http.ResponseWriter, r *http.Request, store Session) {
	if res == nil {
		return
	}
	env := &Environment{
		Method:     r.Method,
		Header:     r.Header,
		Type:       res.Type,
		Connection: newConnection(r),
		writer:     w,
		resource:   res,
	}
	if res.URL != nil {
		env.URL = &EnvironmentURL{
			Raw:         res.URL.Path,
			Dirs:        res.URL.Dirs,
			QueryString: res.URL.RawQuery,
			Query:       res.URL.Query,
		}
	}
	env.Session = &EnvironmentSession{env: env, store: store}
	res.Env = env
}

func newConnection(r *http.Request) *Connection {
	if r.RemoteAddr == "" {
		return nil
	}
	conn := &Connection{Address: r.RemoteAddr}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		conn.Address = host
	}
	if ip := net.ParseIP(conn.Address); ip != nil {
		conn.Family = "IPv6"
		if ip.To4() != nil {
			conn.Family = "IPv4"
		}
	}
	if addr, ok := r.Context().Value(http.LocalAddrContextKey).(net.Addr); ok {
		conn.Local = addr.String()
		host, _, err := net.SplitHostPort(conn.Local)
		if err == nil {
			conn.Local = host
		}
	}
	return conn
}

// SetHeader method sets a response header.
func (env *Environment) SetHeader(key, value string) error {
	env.mu.Lock()
	defer env.mu.Unlock()
	if env.finished {
		return ErrEnvironmentFinished
	}
	env.writer.Header().Set(key, value)
	return nil
}

// Redirect method sets the Location header and the status code,
// default [DefaultEnvironmentRedirectCode].
func (env *Environment) Redirect(location string, code ...int) error {
	status := DefaultEnvironmentRedirectCode
	if len(code) > 0 {
		status = code[0]
	}
	env.mu.Lock()
	defer env.mu.Unlock()
	if env.finished {
		return ErrEnvironmentFinished
	}
	env.writer.Header().Set(HeaderLocation, location)
	env.resource.StatusCode = status
	return nil
}

// SetStatusCode method overrides the response status code.
func (env *Environment) SetStatusCode(code int) error {
	env.mu.Lock()
	defer env.mu.Unlock()
	if env.finished {
		return ErrEnvironmentFinished
	}
	env.resource.StatusCode = code
	return nil
}

// Finished method reports whether the response has been written.
func (env *Environment) Finished() bool {
	env.mu.Lock()
	defer env.mu.Unlock()
	return env.finished
}

// finish marks the response as written, it waits for a running mutation.
func (env *Environment) finish() {
	if env == nil {
		return
	}
	env.mu.Lock()
	env.finished = true
	env.mu.Unlock()
}

// Start method loads the session of the request from the store.
func (sess *EnvironmentSession) Start(w http.ResponseWriter, r *http.Request, res *Resource) {
	if sess.store == nil {
		return
	}
	data := sess.store.Start(w, r, res)
	sess.env.mu.Lock()
	sess.data = data
	sess.env.mu.Unlock()
}

// Get method returns the session value, nil if the session is not started.
func (sess *EnvironmentSession) Get(key string) any {
	sess.env.mu.Lock()
	data := sess.data
	sess.env.mu.Unlock()
	if data == nil {
		return nil
	}
	return data.Get(key)
}

// Set method sets the session value.
func (sess *EnvironmentSession) Set(key string, val any) error {
	sess.env.mu.Lock()
	defer sess.env.mu.Unlock()
	if sess.env.finished {
		return ErrEnvironmentFinished
	}
	if sess.data == nil {
		return nil
	}
	return sess.data.Set(key, val)
}

// ID method returns the session id, empty if the session is not started.
func (sess *EnvironmentSession) ID() string {
	sess.env.mu.Lock()
	defer sess.env.mu.Unlock()
	if sess.data == nil {
		return ""
	}
	return sess.data.SessionID()
}
