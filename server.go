package deliver

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// ServerState defines the lifecycle state of a [Server].
type ServerState int32

// ServerStopped and friends define the [Server] states.
const (
	ServerStopped ServerState = iota
	ServerStarting
	ServerListening
)

func (s ServerState) String() string {
	switch s {
	case ServerStarting:
		return "starting"
	case ServerListening:
		return "listening"
	}
	return "stopped"
}

// Server starts one plain listener and, if [ServerConfig].SSL is set,
// one https listener.
type Server struct {
	Config  *ServerConfig
	Handler http.Handler
	Logger  Logger

	mu      sync.Mutex
	state   atomic.Int32
	servers []*serverListener
}

type serverListener struct {
	Proto    string
	Server   *http.Server
	Listener net.Listener
}

// NewServer function creates a stopped Server.
func NewServer(config *ServerConfig, handler http.Handler, log Logger) *Server {
	if config == nil {
		config = &ServerConfig{}
	}
	if log == nil {
		log = DefaultLoggerNull
	}
	return &Server{
		Config:  config,
		Handler: handler,
		Logger:  log,
	}
}

// Start method binds the listeners and serves them in the background.
//
// A listener that fails to bind is logged and skipped, Start returns an
// error only if no listener is up.
func (srv *Server) Start(ctx context.Context) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.State() != ServerStopped {
		return ErrServerRunning
	}
	srv.state.Store(int32(ServerStarting))

	var errs []error
	if err := srv.startHTTP(ctx); err != nil {
		errs = append(errs, err)
	}
	if srv.Config.SSL != nil {
		if err := srv.startHTTPS(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(srv.servers) == 0 {
		srv.state.Store(int32(ServerStopped))
		return errors.Join(append([]error{ErrServerNoListener}, errs...)...)
	}
	srv.state.Store(int32(ServerListening))
	return nil
}

func (srv *Server) startHTTP(ctx context.Context) error {
	handler := srv.Handler
	if srv.Config.H2C {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}
	ln, err := srv.listen(ctx, "http", srv.Config.Ports.HTTP)
	if err != nil {
		return err
	}
	srv.serve("http", srv.newHTTPServer(handler), ln)
	return nil
}

func (srv *Server) startHTTPS(ctx context.Context) error {
	cert, _, err := loadCertificate(srv.Config.SSL.Cert, srv.Config.SSL.Key)
	if err != nil {
		err = fmt.Errorf(ErrServerLoadCertificate, err)
		srv.Logger.Error(err)
		return err
	}

	server := srv.newHTTPServer(srv.Handler)
	server.TLSConfig = &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}
	if srv.Config.SSL.HTTP2 {
		err = http2.ConfigureServer(server, &http2.Server{
			IdleTimeout: srv.Config.IdleTimeout.orDefault(DefaultServerIdleTimeout),
		})
		if err != nil {
			srv.Logger.Error("Server: http2 configure error:", err)
		}
	} else {
		server.TLSConfig.NextProtos = []string{"http/1.1"}
		server.TLSNextProto = make(map[string]func(*http.Server, *tls.Conn, http.Handler))
	}

	ln, err := srv.listen(ctx, "https", srv.Config.Ports.HTTPS)
	if err != nil {
		return err
	}
	srv.serve("https", server, tls.NewListener(ln, server.TLSConfig))
	return nil
}

func (srv *Server) listen(ctx context.Context, proto string, port int) (net.Listener, error) {
	addr := net.JoinHostPort(srv.Config.Host, strconv.Itoa(port))
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			srv.Logger.Error("Cannot start server (address already in use)")
			return nil, fmt.Errorf(ErrServerListenFormat, proto, addr, ErrServerAddressInUse)
		}
		srv.Logger.Errorf("Server: listen %s %s error: %v", proto, addr, err)
		return nil, fmt.Errorf(ErrServerListenFormat, proto, addr, err)
	}
	return ln, nil
}

func (srv *Server) serve(proto string, server *http.Server, ln net.Listener) {
	srv.servers = append(srv.servers, &serverListener{
		Proto:    proto,
		Server:   server,
		Listener: ln,
	})
	srv.Logger.Infof("Listening on %s://%s/", proto, ln.Addr().String())
	go func() {
		err := server.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.Logger.Errorf("Server: %s serve error: %v", proto, err)
		}
	}()
}

func (srv *Server) newHTTPServer(handler http.Handler) *http.Server {
	return &http.Server{
		Handler:           handler,
		ReadTimeout:       srv.Config.ReadTimeout.orDefault(DefaultServerReadTimeout),
		ReadHeaderTimeout: srv.Config.ReadHeaderTimeout.orDefault(DefaultServerReadHeaderTimeout),
		WriteTimeout:      srv.Config.WriteTimeout.orDefault(DefaultServerWriteTimeout),
		IdleTimeout:       srv.Config.IdleTimeout.orDefault(DefaultServerIdleTimeout),
	}
}

// Stop method shuts down the active listeners concurrently and waits for
// all of them.
func (srv *Server) Stop(ctx context.Context) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.State() == ServerStopped {
		return nil
	}

	var wg sync.WaitGroup
	errs := make([]error, len(srv.servers))
	for i, s := range srv.servers {
		wg.Add(1)
		go func(i int, s *serverListener) {
			defer wg.Done()
			if err := s.Server.Shutdown(ctx); err != nil {
				errs[i] = fmt.Errorf("Server: %s shutdown error: %w", s.Proto, err)
			}
		}(i, s)
	}
	wg.Wait()

	srv.servers = nil
	srv.state.Store(int32(ServerStopped))
	return errors.Join(errs...)
}

// Addrs method returns the bound addresses, plain first.
func (srv *Server) Addrs() []net.Addr {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	addrs := make([]net.Addr, len(srv.servers))
	for i, s := range srv.servers {
		addrs[i] = s.Listener.Addr()
	}
	return addrs
}

// URLs method returns the base urls of the bound listeners.
func (srv *Server) URLs() []string {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	urls := make([]string, len(srv.servers))
	for i, s := range srv.servers {
		urls[i] = s.Proto + "://" + s.Listener.Addr().String() + "/"
	}
	return urls
}

// State method returns the lifecycle state.
func (srv *Server) State() ServerState {
	return ServerState(srv.state.Load())
}

// loadCertificate loads the configured certificate, or generates a private
// one when no certificate file is configured.
func loadCertificate(cert, key string) (tls.Certificate, *x509.Certificate, error) {
	if cert != "" || key != "" {
		pair, err := tls.LoadX509KeyPair(cert, key)
		if err != nil {
			return pair, nil, err
		}
		ca, err := x509.ParseCertificate(pair.Certificate[0])
		return pair, ca, err
	}

	ca := &x509.Certificate{
		SerialNumber: big.NewInt(1653),
		Subject: pkix.Name{
			Organization:       []string{"deliver"},
			OrganizationalUnit: []string{"development"},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().AddDate(1, 0, 0),
		SubjectKeyId:          []byte{1, 2, 3, 4, 5},
		BasicConstraintsValid: true,

		IsCA:        true,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		DNSNames:    []string{"localhost"},
		IPAddresses: []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
	}

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, nil, err
	}
	der, err := x509.CreateCertificate(rand.Reader, ca, ca, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, nil, err
	}
	ca.Raw = der
	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
	}, ca, nil
}
