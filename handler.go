package deliver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Handler defines the delivery pipeline as an [http.Handler]:
// Parser, Environment, Session, Validator, Router, Responder.
type Handler struct {
	Parser    Parser
	Router    Router
	Session   Session
	Output    Output
	Logger    Logger
	Validator *Validator
	Responder *Responder
	// ReplyTimeout bounds the wait for the Router reply.
	ReplyTimeout time.Duration
}

// NewHandler function creates the pipeline from config and collaborators,
// nil collaborators use the defaults of config.
func NewHandler(config *Config, parser Parser, router Router, session Session, log Logger) *Handler {
	if log == nil {
		log = DefaultLoggerNull
	}
	if parser == nil {
		parser = NewParserStd(config)
	}
	if router == nil {
		router = NewRouterStatic(config.Root, log)
	}
	if session == nil {
		session = NewSession(&config.Session, log)
	}
	output := NewOutputLogger(log)
	validator := NewValidator()
	return &Handler{
		Parser:    parser,
		Router:    router,
		Session:   session,
		Output:    output,
		Logger:    log,
		Validator: validator,
		Responder: &Responder{
			Validator: validator,
			Output:    output,
			Logger:    log,
			Dev:       config.Dev,
		},
		ReplyTimeout: config.ReplyTimeout.orDefault(DefaultHandlerReplyTimeout),
	}
}

// ServeHTTP method runs the pipeline for one request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tx := NewTransaction(r)
	w.Header().Set(HeaderXRequestID, tx.RequestID)

	res := h.parse(w, r)
	if res == nil {
		h.Responder.Respond(w, tx, nil, ErrResourceNotFound, nil)
		return
	}
	BuildEnvironment(res, w, r, h.Session)
	res.Env.Session.Start(w, r, res)

	if !res.Allowed {
		h.Responder.Respond(w, tx, res, ErrResourceNotAllowed, nil)
		return
	}
	if h.Validator.IsUnchanged(r, res) {
		res.StatusCode = StatusNotModified
		res.Encoding = ""
		h.Responder.Respond(w, tx, res, nil, nil)
		return
	}

	reply := NewReply()
	h.load(res, reply)

	ctx, cancel := context.WithTimeout(r.Context(), h.ReplyTimeout)
	body, err := reply.Wait(ctx)
	cancel()
	tx.ServedWith = reply.ServedWith()
	if errors.Is(err, context.DeadlineExceeded) {
		err = ErrReplyTimeout
		h.Logger.WithField("x-request-id", tx.RequestID).Errorf("Handler: %s %v", tx.URL, err)
	}
	h.Responder.Respond(w, tx, res, err, body)
}

func (h *Handler) parse(w http.ResponseWriter, r *http.Request) (res *Resource) {
	defer func() {
		if rec := recover(); rec != nil {
			h.Logger.Errorf("Handler: parser panic: %v", rec)
			res = nil
		}
	}()
	return h.Parser.Parse(w, r)
}

func (h *Handler) load(res *Resource, reply *Reply) {
	defer func() {
		if rec := recover(); rec != nil {
			err := newRouterPanicError(rec)
			h.Logger.Error(err)
			reply.Done(err, nil)
		}
	}()
	h.Router.Load(res, reply)
}

func newRouterPanicError(rec any) error {
	return fmt.Errorf(ErrRouterPanicFormat, ErrRouterPanic, rec)
}
