package deliver_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eudore/deliver"
	"github.com/gorilla/sessions"
)

// newCounterHandler counts the requests of a client in its session.
func newCounterHandler(t *testing.T, session deliver.Session) http.Handler {
	t.Helper()
	config := deliver.NewConfig()
	config.Root = t.TempDir()
	mux := deliver.NewRouterMux(nil)
	mux.HandleFunc("/count.html", func(res *deliver.Resource) ([]byte, error) {
		n, _ := res.Env.Session.Get("count").(int)
		n++
		if err := res.Env.Session.Set("count", n); err != nil {
			return nil, err
		}
		return []byte{byte('0' + n)}, nil
	})
	return deliver.NewHandler(config, nil, mux, session, nil)
}

func serveWithCookies(h http.Handler, cookies []*http.Cookie) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "/count.html", nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func testSessionCounter(t *testing.T, session deliver.Session) {
	h := newCounterHandler(t, session)
	w := serveWithCookies(h, nil)
	cookies := w.Result().Cookies()
	if w.Body.String() != "1" || len(cookies) == 0 {
		t.Fatalf("first body %q cookies %v", w.Body.String(), cookies)
	}
	if cookies[0].Name != deliver.DefaultSessionName {
		t.Errorf("cookie name %q", cookies[0].Name)
	}

	w = serveWithCookies(h, cookies)
	if w.Body.String() != "2" {
		t.Errorf("second body %q", w.Body.String())
	}
	if w := serveWithCookies(h, nil); w.Body.String() != "1" {
		t.Errorf("other client body %q", w.Body.String())
	}
}

func TestSessionMap(t *testing.T) {
	store := deliver.NewSessionMap("", 0)
	testSessionCounter(t, store)
	if store.Len() != 2 {
		t.Errorf("sessions %d", store.Len())
	}
}

func TestSessionMapLazy(t *testing.T) {
	store := deliver.NewSessionMap("", 0)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		data := store.Start(w, httptest.NewRequest(http.MethodGet, "/", nil), nil)
		if data.Get("user") != nil || data.SessionID() != "" {
			t.Errorf("empty session %q", data.SessionID())
		}
		if c := w.Header().Get("Set-Cookie"); c != "" {
			t.Errorf("cookie without Set: %q", c)
		}
	}
	if store.Len() != 0 {
		t.Errorf("sessions %d", store.Len())
	}

	w := httptest.NewRecorder()
	data := store.Start(w, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	data.Set("user", "alice")
	data.Set("role", "admin")
	if store.Len() != 1 || data.SessionID() == "" || len(w.Result().Cookies()) != 1 {
		t.Errorf("sessions %d id %q cookies %v", store.Len(), data.SessionID(), w.Result().Cookies())
	}
}

func TestSessionMapExpire(t *testing.T) {
	store := deliver.NewSessionMap("sid", 1)
	w := httptest.NewRecorder()
	data := store.Start(w, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	data.Set("user", "alice")

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(w.Result().Cookies()[0])
	if again := store.Start(httptest.NewRecorder(), r, nil); again.SessionID() != data.SessionID() || again.Get("user") != "alice" {
		t.Errorf("session not restored: %s", again.SessionID())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go store.Cleanup(ctx, 100*time.Millisecond)
	waitFor(t, func() bool { return store.Len() == 0 })

	if again := store.Start(httptest.NewRecorder(), r, nil); again.SessionID() == data.SessionID() {
		t.Error("expired session restored")
	}
}

func TestSessionGorillaCookie(t *testing.T) {
	store := sessions.NewCookieStore([]byte("0123456789abcdef0123456789abcdef"))
	testSessionCounter(t, deliver.NewSessionGorilla("", store, nil))
}

func TestSessionGorillaFilesystem(t *testing.T) {
	session := deliver.NewSession(&deliver.SessionConfig{
		Name:   deliver.DefaultSessionName,
		Secret: "0123456789abcdef0123456789abcdef",
		Path:   t.TempDir(),
		MaxAge: 600,
	}, nil)
	if _, ok := session.(*deliver.SessionGorilla); !ok {
		t.Fatalf("session %T", session)
	}
	testSessionCounter(t, session)
}

func TestSessionGorillaInvalidCookie(t *testing.T) {
	store := sessions.NewCookieStore([]byte("0123456789abcdef0123456789abcdef"))
	h := newCounterHandler(t, deliver.NewSessionGorilla("", store, nil))
	w := serveWithCookies(h, []*http.Cookie{{Name: deliver.DefaultSessionName, Value: "broken"}})
	if w.Body.String() != "1" {
		t.Errorf("body %q", w.Body.String())
	}
}
