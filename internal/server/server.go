// Package server exposes a command registry over telnet: one shell per
// connection, all serviced by a single cooperative scheduler. The accept
// goroutine only hands connections over; every shell is created, stepped and
// torn down on the Serve goroutine.
package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TrailHuang/conshell/internal/config"
	"github.com/TrailHuang/conshell/internal/logbus"
	"github.com/TrailHuang/conshell/internal/registry"
	"github.com/TrailHuang/conshell/internal/shell"
	"github.com/TrailHuang/conshell/internal/stream"
)

// Session binds one telnet connection to its shell.
type Session struct {
	ID     string
	stream *stream.Conn
	shell  *shell.Shell
}

// Server accepts telnet connections and drives their shells.
type Server struct {
	cfg    *config.Config
	reg    *registry.Registry
	sched  *shell.Scheduler
	hub    *logbus.Hub
	logger *zap.Logger

	listener net.Listener
	incoming chan net.Conn
	sessions map[string]*Session
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a server around a shared registry. hub and logger may be nil.
func New(cfg *config.Config, reg *registry.Registry, hub *logbus.Hub, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:      cfg,
		reg:      reg,
		sched:    shell.NewScheduler(),
		hub:      hub,
		logger:   logger,
		incoming: make(chan net.Conn, 8),
		sessions: make(map[string]*Session),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins listening and accepting connections.
func (sv *Server) Start() error {
	ln, err := net.Listen("tcp", sv.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", sv.cfg.Listen, err)
	}
	sv.listener = ln
	go sv.accept()
	sv.logger.Info("console listening", zap.String("addr", ln.Addr().String()))
	return nil
}

func (sv *Server) accept() {
	for {
		conn, err := sv.listener.Accept()
		if err != nil {
			if sv.ctx.Err() != nil {
				return
			}
			sv.logger.Warn("accept failed", zap.Error(err))
			continue
		}
		select {
		case sv.incoming <- conn:
		case <-sv.ctx.Done():
			conn.Close()
			return
		}
	}
}

// Serve drives the scheduler until ctx is cancelled or Stop is called.
func (sv *Server) Serve(ctx context.Context) error {
	tick := time.NewTicker(sv.cfg.Poll())
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sv.ctx.Done():
			return nil
		case conn := <-sv.incoming:
			sv.attach(conn)
		case <-tick.C:
			sv.sched.ServiceAll()
			sv.sweep()
		}
	}
}

// attach negotiates telnet character mode and gives the connection a shell.
func (sv *Server) attach(conn net.Conn) {
	negotiate(conn)
	st := stream.NewTelnetConn(conn)

	scfg := shell.DefaultConfig()
	scfg.Prompt = sv.cfg.Prompt
	scfg.Welcome = sv.cfg.Welcome
	scfg.MaxLineLen = sv.cfg.MaxLineLen
	scfg.MaxHistory = sv.cfg.MaxHistory
	scfg.LogDepth = sv.cfg.LogDepth
	scfg.Hub = sv.hub
	scfg.Logger = sv.logger

	sh := shell.New(sv.sched, sv.reg, st, scfg)
	sh.SetEOTHook(func(s *shell.Shell) { s.Stop() })
	sh.Start()

	sess := &Session{ID: uuid.NewString(), stream: st, shell: sh}
	sv.sessions[sess.ID] = sess
	sv.logger.Info("session opened",
		zap.String("session", sess.ID),
		zap.String("remote", conn.RemoteAddr().String()))
}

// sweep stops shells whose connection went away and closes connections whose
// shell stopped. Stop is advisory, so a dropped connection may take a couple
// of sweeps to unwind through nested shells.
func (sv *Server) sweep() {
	for id, sess := range sv.sessions {
		if sess.stream.EOF() && sess.shell.Running() {
			sess.shell.Stop()
			continue
		}
		if !sess.shell.Running() {
			sess.stream.Close()
			delete(sv.sessions, id)
			sv.logger.Info("session closed", zap.String("session", id))
		}
	}
}

// Sessions reports the number of open sessions.
func (sv *Server) Sessions() int {
	return len(sv.sessions)
}

// Stop shuts the listener and every session down.
func (sv *Server) Stop() {
	sv.cancel()
	if sv.listener != nil {
		sv.listener.Close()
	}
	for id, sess := range sv.sessions {
		sess.stream.Close()
		delete(sv.sessions, id)
	}
}

// negotiate puts the telnet peer into character-at-a-time mode with local
// echo suppressed.
func negotiate(conn net.Conn) {
	conn.Write([]byte{
		0xFF, 0xFB, 0x01, // IAC WILL ECHO
		0xFF, 0xFD, 0x03, // IAC DO SUPPRESS-GO-AHEAD
		0xFF, 0xFB, 0x03, // IAC WILL SUPPRESS-GO-AHEAD
	})
}
