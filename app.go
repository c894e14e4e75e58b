package deliver

import (
	"context"
	"net/http"
	"syscall"
)

// App composes the [Config], [Logger], [Server] and [Handler] of a
// delivery process.
//
// Create the members in order: Config, Logger, Router, Handler, Server.
type App struct {
	context.Context
	Cancel  context.CancelFunc
	Config  *Config
	Logger  Logger
	Static  *RouterStatic
	Router  *RouterMux
	Session Session
	Handler *Handler
	Server  *Server
	Signal  *Signal
}

// NewApp function creates an App from a parsed config.
func NewApp(config *Config) *App {
	ctx, cancel := context.WithCancel(context.Background())
	log := NewLogger(&config.Logger)
	static := NewRouterStatic(config.Root, log)
	router := NewRouterMux(static)
	session := NewSession(&config.Session, log)
	handler := NewHandler(config, nil, router, session, log)

	var h http.Handler = handler
	if config.Rate.Limit > 0 {
		h = NewRateHandler(ctx, handler, config.Rate, log)
	}

	return &App{
		Context: ctx,
		Cancel:  cancel,
		Config:  config,
		Logger:  log,
		Static:  static,
		Router:  router,
		Session: session,
		Handler: handler,
		Server:  NewServer(&config.ServerConfig, h, log),
		Signal:  NewSignal(log),
	}
}

// HandleFunc method registers a dynamic page for the request path.
func (app *App) HandleFunc(path string, fn RouterFunc) {
	app.Router.HandleFunc(path, fn)
}

// Run method starts the server and the background workers, then blocks
// until SIGINT, SIGTERM or the App context is done. SIGHUP drops the
// static content cache.
func (app *App) Run() error {
	defer app.Cancel()
	app.Logger.Debug("config: " + app.Config.String())
	if app.Config.Dev {
		app.Handler.Output.Print("Development mode on")
	}

	err := app.Server.Start(app)
	if err != nil {
		app.Logger.Error(err)
		return err
	}

	go func() {
		if err := app.Static.Watch(app); err != nil {
			app.Logger.Error("RouterStatic: watch error:", err)
		}
	}()
	if store, ok := app.Session.(*SessionMap); ok {
		go store.Cleanup(app, DefaultSessionCleanupInterval)
	}
	app.Signal.Register(syscall.SIGHUP, func(context.Context) error {
		app.Static.Reset()
		return nil
	})
	app.Signal.Register(syscall.SIGINT, app.stop)
	app.Signal.Register(syscall.SIGTERM, app.stop)

	app.Signal.Run(app)
	return app.Shutdown()
}

func (app *App) stop(context.Context) error {
	app.Cancel()
	return nil
}

// Shutdown method stops the server, waiting at most
// [DefaultServerShutdownWait] for active requests.
func (app *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultServerShutdownWait)
	defer cancel()
	err := app.Server.Stop(ctx)
	if err != nil {
		app.Logger.Error(err)
	}
	app.Logger.Info("deliver stopped")
	return err
}
