package deliver

import (
	"sync"
	"sync/atomic"
)

// Router defines the content producer of the pipeline.
//
// Load must complete reply exactly once, synchronously or from another
// goroutine, and should record its content source with
// [Reply.SetServedWith]. Last returns the identifier of the most recently
// used content source across all requests.
type Router interface {
	Load(res *Resource, reply *Reply)
	Last() string
}

// RouterFunc defines a dynamic page, it may use the [Environment] hooks
// of res.Env to set headers, status or redirect.
type RouterFunc func(res *Resource) ([]byte, error)

// RouterMux dispatches exact request paths to RouterFuncs and the other
// paths to Fallback.
type RouterMux struct {
	Fallback Router
	mu       sync.RWMutex
	routes   map[string]RouterFunc
	last     atomic.Value
}

// NewRouterMux function creates a RouterMux, fallback may be nil.
func NewRouterMux(fallback Router) *RouterMux {
	return &RouterMux{
		Fallback: fallback,
		routes:   make(map[string]RouterFunc),
	}
}

// HandleFunc method registers fn for the request path.
func (mux *RouterMux) HandleFunc(path string, fn RouterFunc) {
	mux.mu.Lock()
	defer mux.mu.Unlock()
	mux.routes[path] = fn
}

// Load method runs the RouterFunc of res in a new goroutine,
// or calls Fallback.
func (mux *RouterMux) Load(res *Resource, reply *Reply) {
	path := ""
	if res.URL != nil {
		path = res.URL.Path
	}
	mux.mu.RLock()
	fn, ok := mux.routes[path]
	mux.mu.RUnlock()
	if !ok {
		if mux.Fallback == nil {
			mux.last.Store("")
			reply.Done(ErrResourceNotFound, nil)
			return
		}
		mux.Fallback.Load(res, reply)
		mux.last.Store(mux.Fallback.Last())
		return
	}

	mux.last.Store(path)
	reply.SetServedWith(path)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				reply.Done(newRouterPanicError(r), nil)
			}
		}()
		body, err := fn(res)
		reply.Done(err, body)
	}()
}

// Last method returns the path of the last RouterFunc or the Fallback
// identifier.
func (mux *RouterMux) Last() string {
	last, _ := mux.last.Load().(string)
	return last
}
