package deliver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

type (
	// Session defines the process-wide session store.
	//
	// Start is called once per request before cache validation and returns
	// the session of the client.
	Session interface {
		Start(w http.ResponseWriter, r *http.Request, res *Resource) SessionData
	}
	// SessionData defines the session of one client.
	SessionData interface {
		Get(key string) any
		Set(key string, val any) error
		SessionID() string
	}
	// SessionMap stores sessions in memory, a session is identified by an
	// uuid cookie and expires MaxAge seconds after its last use.
	// A session is stored and its cookie set on the first Set.
	SessionMap struct {
		Name   string
		MaxAge int
		mu     sync.Mutex
		mem    map[string]*sessionDataMap
	}
	// SessionGorilla stores sessions with a gorilla/sessions Store.
	SessionGorilla struct {
		Name   string
		Store  sessions.Store
		Logger Logger
	}
	sessionDataMap struct {
		sync.RWMutex
		store   *SessionMap
		w       http.ResponseWriter
		id      string
		data    map[string]any
		expires time.Time
	}
	sessionDataGorilla struct {
		session *sessions.Session
		w       http.ResponseWriter
		r       *http.Request
	}
)

// NewSession function creates the Session described by config.
//
// If Secret or Path is set, use [SessionGorilla], else [SessionMap].
func NewSession(config *SessionConfig, log Logger) Session {
	if config.Secret == "" && config.Path == "" {
		return NewSessionMap(config.Name, config.MaxAge)
	}
	var store sessions.Store
	if config.Path != "" {
		fs := sessions.NewFilesystemStore(config.Path, []byte(config.Secret))
		fs.MaxAge(config.MaxAge)
		store = fs
	} else {
		cs := sessions.NewCookieStore([]byte(config.Secret))
		cs.MaxAge(config.MaxAge)
		store = cs
	}
	return NewSessionGorilla(config.Name, store, log)
}

// NewSessionMap function creates an in-memory Session.
func NewSessionMap(name string, maxage int) *SessionMap {
	if name == "" {
		name = DefaultSessionName
	}
	if maxage <= 0 {
		maxage = DefaultSessionMaxAge
	}
	return &SessionMap{
		Name:   name,
		MaxAge: maxage,
		mem:    make(map[string]*sessionDataMap),
	}
}

// Start method loads the session named by the request cookie, or returns
// an empty session that is stored by its first Set.
func (store *SessionMap) Start(w http.ResponseWriter, r *http.Request, _ *Resource) SessionData {
	if cookie, err := r.Cookie(store.Name); err == nil {
		now := time.Now()
		store.mu.Lock()
		sess, ok := store.mem[cookie.Value]
		if ok && sess.expires.After(now) {
			sess.expires = now.Add(store.lifetime())
			store.mu.Unlock()
			return sess
		}
		delete(store.mem, cookie.Value)
		store.mu.Unlock()
	}
	return &sessionDataMap{store: store, w: w}
}

func (store *SessionMap) lifetime() time.Duration {
	return time.Duration(store.MaxAge) * time.Second
}

// create stores sess under a new id and sets its cookie, sess is locked.
func (store *SessionMap) create(sess *sessionDataMap) {
	sess.id = uuid.New().String()
	sess.data = make(map[string]any)
	store.mu.Lock()
	sess.expires = time.Now().Add(store.lifetime())
	store.mem[sess.id] = sess
	store.mu.Unlock()
	http.SetCookie(sess.w, &http.Cookie{
		Name:     store.Name,
		Value:    sess.id,
		Path:     "/",
		MaxAge:   store.MaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	sess.w = nil
}

// Cleanup method purges expired sessions every interval until ctx is done.
func (store *SessionMap) Cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			store.purge(now)
		}
	}
}

func (store *SessionMap) purge(now time.Time) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for id, sess := range store.mem {
		if !sess.expires.After(now) {
			delete(store.mem, id)
		}
	}
}

// Len method returns the number of stored sessions.
func (store *SessionMap) Len() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.mem)
}

func (sess *sessionDataMap) Get(key string) any {
	sess.RLock()
	defer sess.RUnlock()
	return sess.data[key]
}

func (sess *sessionDataMap) Set(key string, val any) error {
	sess.Lock()
	if sess.id == "" {
		sess.store.create(sess)
	}
	sess.data[key] = val
	sess.Unlock()
	return nil
}

func (sess *sessionDataMap) SessionID() string {
	sess.RLock()
	defer sess.RUnlock()
	return sess.id
}

// NewSessionGorilla function creates a Session using store.
func NewSessionGorilla(name string, store sessions.Store, log Logger) *SessionGorilla {
	if name == "" {
		name = DefaultSessionName
	}
	if log == nil {
		log = DefaultLoggerNull
	}
	return &SessionGorilla{Name: name, Store: store, Logger: log}
}

// Start method loads the gorilla session of the request, a session that
// cannot be decoded is replaced by a new one.
func (store *SessionGorilla) Start(w http.ResponseWriter, r *http.Request, _ *Resource) SessionData {
	session, err := store.Store.Get(r, store.Name)
	if err != nil {
		store.Logger.Warning(fmt.Errorf(ErrSessionGorillaStoreFormat, store.Name, err))
	}
	if session == nil {
		session = sessions.NewSession(store.Store, store.Name)
	}
	return &sessionDataGorilla{session: session, w: w, r: r}
}

func (sess *sessionDataGorilla) Get(key string) any {
	return sess.session.Values[key]
}

// Set method saves the session immediately, the cookie must be written
// before the response header.
func (sess *sessionDataGorilla) Set(key string, val any) error {
	sess.session.Values[key] = val
	return sess.session.Save(sess.r, sess.w)
}

func (sess *sessionDataGorilla) SessionID() string {
	return sess.session.ID
}
