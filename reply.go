package deliver

import (
	"context"
	"sync"
)

// Reply defines the single-fire completion handle given to [Router.Load].
//
// Done may be called from any goroutine, only the first call is delivered.
type Reply struct {
	once       sync.Once
	ch         chan replyResult
	mu         sync.Mutex
	servedWith string
}

type replyResult struct {
	body []byte
	err  error
}

// NewReply function creates an empty Reply.
func NewReply() *Reply {
	return &Reply{ch: make(chan replyResult, 1)}
}

// Done method delivers the router result, it returns false and
// ignores the result if the Reply was already completed.
func (reply *Reply) Done(err error, body []byte) bool {
	done := false
	reply.once.Do(func() {
		reply.ch <- replyResult{body, err}
		done = true
	})
	return done
}

// Wait method returns the delivered result or the ctx error.
func (reply *Reply) Wait(ctx context.Context) ([]byte, error) {
	select {
	case result := <-reply.ch:
		return result.body, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SetServedWith method records the identifier of the content source that
// serves this request.
func (reply *Reply) SetServedWith(name string) {
	reply.mu.Lock()
	reply.servedWith = name
	reply.mu.Unlock()
}

// ServedWith method returns the identifier set by SetServedWith.
func (reply *Reply) ServedWith() string {
	reply.mu.Lock()
	defer reply.mu.Unlock()
	return reply.servedWith
}
