package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/landyrev/simple-nmea-simulator/simulator"
	"github.com/rs/zerolog"
)

// WriteTimeout bounds a single batch write to a TCP client.
const WriteTimeout = 5 * time.Second

// TCPServer streams every batch to all connected TCP clients. Each client
// gets its own subscription, so a slow or broken client never affects the
// others.
type TCPServer struct {
	addr string
	b    Broadcaster
	log  zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	clients  map[string]net.Conn
	wg       sync.WaitGroup
	ready    chan struct{}
}

// NewTCPServer creates a server that will listen on addr.
func NewTCPServer(addr string, b Broadcaster, log zerolog.Logger) *TCPServer {
	return &TCPServer{
		addr:    addr,
		b:       b,
		log:     log,
		clients: make(map[string]net.Conn),
		ready:   make(chan struct{}),
	}
}

// ListenAndServe listens on the configured address and serves clients until
// ctx is cancelled.
func (s *TCPServer) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts clients on ln until ctx is cancelled. It closes ln and
// every client connection before returning. A TCPServer serves once.
func (s *TCPServer) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	close(s.ready)

	s.log.Info().Str("addr", ln.Addr().String()).Msg("NMEA TCP server started")

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-serveCtx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			cancel()
			s.closeClients()
			s.wg.Wait()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.log.Info().Msg("NMEA TCP server stopped")
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(serveCtx, conn)
		}()
	}
}

// Addr returns the listening address once Serve has started.
func (s *TCPServer) Addr() net.Addr {
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener.Addr()
}

// Clients returns the number of connected clients.
func (s *TCPServer) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// handle streams to conn until the client goes away or ctx is cancelled.
// The client stays connected across simulator runs.
func (s *TCPServer) handle(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	log := s.log.With().Str("remote", remote).Logger()

	s.mu.Lock()
	s.clients[remote] = conn
	s.mu.Unlock()

	log.Info().Msg("Client connected")

	defer func() {
		s.mu.Lock()
		delete(s.clients, remote)
		s.mu.Unlock()
		conn.Close()
		log.Info().Msg("Client disconnected")
	}()

	if err := Attach(ctx, s.b, &connSink{conn: conn}); err != nil {
		log.Debug().Err(err).Msg("Client write failed")
	}
}

func (s *TCPServer) closeClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.clients {
		conn.Close()
	}
}

type connSink struct {
	conn net.Conn
}

func (c *connSink) Send(_ context.Context, batch simulator.Batch) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout)); err != nil {
		return err
	}
	_, err := c.conn.Write(Lines(batch))
	return err
}

func (c *connSink) Close() error {
	return c.conn.Close()
}
