package deliver

import (
	"context"
	"os"
	"os/signal"
	"sync"
)

// SignalFunc defines the handler of an [os.Signal].
type SignalFunc func(context.Context) error

// Signal defines the registry of [os.Signal] handlers, Run calls the
// handlers of each received signal.
type Signal struct {
	sync.Mutex
	Chan   chan os.Signal
	Funcs  map[os.Signal][]SignalFunc
	Logger Logger
}

// NewSignal function creates an empty Signal.
func NewSignal(log Logger) *Signal {
	if log == nil {
		log = DefaultLoggerNull
	}
	return &Signal{
		Chan:   make(chan os.Signal, 1),
		Funcs:  make(map[os.Signal][]SignalFunc),
		Logger: log,
	}
}

// Run method handles the received signals until ctx is done.
func (sig *Signal) Run(ctx context.Context) {
	defer signal.Stop(sig.Chan)
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-sig.Chan:
			sig.Logger.Infof("deliver accept signal: %s", s)
			err := sig.Handle(ctx, s)
			if err != nil {
				sig.Logger.Errorf("deliver handle signal %s error: %v", s, err)
			}
		}
	}
}

// Register method appends a handler of s, a nil fn removes the handlers.
func (sig *Signal) Register(s os.Signal, fn SignalFunc) {
	sig.Lock()
	defer sig.Unlock()
	if fn == nil {
		delete(sig.Funcs, s)
	} else {
		sig.Funcs[s] = append(sig.Funcs[s], fn)
	}
	if len(sig.Funcs[s]) <= 1 {
		sig.notify()
	}
}

// Handle method calls the handlers of s in order and stops at the first
// error.
func (sig *Signal) Handle(ctx context.Context, s os.Signal) error {
	sig.Lock()
	fns := append([]SignalFunc{}, sig.Funcs[s]...)
	sig.Unlock()
	for _, fn := range fns {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (sig *Signal) notify() {
	sigs := make([]os.Signal, 0, len(sig.Funcs))
	for key := range sig.Funcs {
		sigs = append(sigs, key)
	}
	signal.Stop(sig.Chan)
	if len(sigs) > 0 {
		signal.Notify(sig.Chan, sigs...)
	}
}
