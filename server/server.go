// Package server runs the limbo: it accepts Minecraft clients, answers
// server list pings, logs players in and holds them in an empty world.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gstoney/mclimbo"
	"github.com/gstoney/mclimbo/config"
	"github.com/gstoney/mclimbo/packet"
	"github.com/gstoney/mclimbo/wake"
	"github.com/gstoney/mclimbo/world"
)

const (
	writeTimeout   = 10 * time.Second
	wakeTimeout    = 30 * time.Second
	reasonShutdown = "Server closed"
)

var ErrServing = errors.New("server is already serving")

// Listener is told when players finish joining and when they leave. Calls
// happen on the connection's reader goroutine and must not block.
type Listener interface {
	PlayerJoined(c *Conn)
	PlayerLeft(c *Conn)
}

type Option func(*Server)

func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Server) { s.log = log }
}

// WithMetrics registers the server's collectors on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Server) { s.metrics = NewMetrics(reg) }
}

func WithListener(l Listener) Option {
	return func(s *Server) { s.listeners = append(s.listeners, l) }
}

// WithWaker reports the backend state in the server list and starts the
// backend when a player joins.
func WithWaker(w wake.Waker) Option {
	return func(s *Server) { s.waker = w }
}

// Server accepts connections on a listener and runs one Conn per client.
type Server struct {
	cfg       *config.Config
	reg       *packet.Registry
	world     world.Provider
	conns     *Connections
	keepAlive *KeepAlive
	metrics   *Metrics
	listeners []Listener
	waker     wake.Waker
	log       *zap.SugaredLogger

	nextID atomic.Uint64
	wg     sync.WaitGroup

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg *config.Config, reg *packet.Registry, w world.Provider, opts ...Option) *Server {
	s := &Server{
		cfg:   cfg,
		reg:   reg,
		world: w,
		conns: NewConnections(),
		waker: wake.Nop{},
		log:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}
	if _, nop := s.waker.(wake.Nop); !nop {
		s.listeners = append(s.listeners, &wakeOnJoin{waker: s.waker, log: s.log})
	}
	s.keepAlive = NewKeepAlive(s.conns, cfg.KeepAlive.Period.Duration, cfg.KeepAlive.Timeout.Duration, s.metrics, s.log)
	return s
}

func (s *Server) Connections() *Connections { return s.conns }

// ListenAndServe listens on the configured bind address and serves until
// ctx is done or Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", s.cfg.Bind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Bind, err)
	}
	return s.Serve(ctx, l)
}

// Serve accepts connections on l, creating a goroutine pair for each. It
// returns once ctx is done or Shutdown is called and every connection has
// been closed. l is closed on return.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrServing
	}
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()
	defer close(done)

	s.log.Infow("listening", "addr", l.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.keepAlive.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		l.Close()
		return nil
	})
	g.Go(func() error {
		defer cancel()
		return s.acceptLoop(gctx, l)
	})
	err := g.Wait()

	s.conns.ForEach(func(c *Conn) {
		c.Disconnect(reasonShutdown)
	})
	s.wg.Wait()
	s.log.Infow("server stopped")
	return err
}

func (s *Server) acceptLoop(ctx context.Context, l net.Listener) error {
	for {
		nc, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				s.log.Warnw("accept failed, retrying", "error", err)
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.wg.Add(1)
		go s.serveConn(ctx, nc)
	}
}

func (s *Server) connConfig() connConfig {
	return connConfig{
		queueSize:    s.cfg.QueueSize,
		readTimeout:  s.cfg.ReadTimeout.Duration,
		writeTimeout: writeTimeout,
		transport: mclimbo.TransportConfig{
			MaxPacketLen:       s.cfg.Transport.MaxPacketLen,
			MaxDecompressedLen: s.cfg.Transport.MaxDecompressedLen,
		},
	}
}

func (s *Server) serveConn(ctx context.Context, nc net.Conn) {
	defer s.wg.Done()

	c := newConn(s.nextID.Add(1), nc, s.reg, s.connConfig(), s.metrics, s.log)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.ctx = ctx

	if !s.conns.Register(c) {
		c.log.Errorw("duplicate connection id")
		c.Close()
		return
	}
	// Serve's shutdown sweep may already have run.
	if ctx.Err() != nil {
		s.conns.Unregister(c)
		c.Close()
		c.log.Debugw("closed connection accepted during shutdown")
		return
	}
	s.metrics.OpenConnections.Inc()
	s.metrics.ConnectionsByState.WithLabelValues(packet.Handshaking.String()).Inc()
	c.log.Debugw("accepted connection")

	err := c.serve(s.handle)

	if s.conns.Unregister(c) {
		s.metrics.OpenConnections.Dec()
		s.metrics.ConnectionsByState.WithLabelValues(c.State().String()).Dec()
	}
	if err != nil {
		c.log.Warnw("connection ended with error", "error", err)
	} else {
		c.log.Debugw("connection closed")
	}

	if c.joined.Load() {
		c.log.Infow("player left", "name", c.Name())
		for _, l := range s.listeners {
			l.PlayerLeft(c)
		}
	}
}

// Shutdown stops accepting, disconnects every client and waits for their
// goroutines. If ctx ends first the remaining sockets are closed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.conns.ForEach(func(c *Conn) { c.Close() })
		return ctx.Err()
	}
}

type wakeOnJoin struct {
	waker wake.Waker
	log   *zap.SugaredLogger
}

func (w *wakeOnJoin) PlayerJoined(c *Conn) {
	name := c.Name()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), wakeTimeout)
		defer cancel()
		if err := w.waker.Wake(ctx); err != nil {
			w.log.Warnw("could not wake backend", "player", name, "error", err)
		}
	}()
}

func (w *wakeOnJoin) PlayerLeft(*Conn) {}
