// Package testutil provides endpoints for exercising connection pools
// against real sockets.
package testutil

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// MockServer is a TCP server on the loopback interface standing in for a
// database server. It echoes what it reads, can greet new connections, and
// can be stopped and restarted on the same address to simulate outages.
type MockServer struct {
	mu       sync.Mutex
	addr     string
	listener net.Listener
	conns    map[net.Conn]struct{}
	accepted int
	greeting []byte
	wg       sync.WaitGroup
}

// NewMockServer starts a server on a random loopback port.
func NewMockServer() (*MockServer, error) {
	return ListenMockServer("127.0.0.1:0")
}

// ListenMockServer starts a server on addr.
func ListenMockServer(addr string) (*MockServer, error) {
	m := &MockServer{
		addr:  addr,
		conns: make(map[net.Conn]struct{}),
	}
	if err := m.Start(); err != nil {
		return nil, err
	}
	return m, nil
}

// StartMockServer starts a server for t and stops it when t ends.
func StartMockServer(t testing.TB) *MockServer {
	t.Helper()

	m, err := NewMockServer()
	if err != nil {
		t.Fatalf("failed to start mock server: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// FreeAddr returns a loopback address that nothing listens on.
func FreeAddr(t testing.TB) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve address: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

// Addr returns host:port.
func (m *MockServer) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addr
}

// Host returns the listening host.
func (m *MockServer) Host() string {
	host, _, _ := net.SplitHostPort(m.Addr())
	return host
}

// Port returns the listening port.
func (m *MockServer) Port() int {
	_, port, _ := net.SplitHostPort(m.Addr())
	p, _ := strconv.Atoi(port)
	return p
}

// SetGreeting makes the server write b to every new connection.
func (m *MockServer) SetGreeting(b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.greeting = append([]byte(nil), b...)
}

// Accepted returns the number of connections accepted since creation.
func (m *MockServer) Accepted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accepted
}

// Open returns the number of accepted connections still open.
func (m *MockServer) Open() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

// Running reports whether the server is listening.
func (m *MockServer) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listener != nil
}

// Start listens again on the server's address after Stop.
func (m *MockServer) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listener != nil {
		return errors.New("mock server already running")
	}
	ln, err := net.Listen("tcp", m.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", m.addr, err)
	}
	m.listener = ln
	m.addr = ln.Addr().String()

	m.wg.Add(1)
	go m.acceptLoop(ln)

	log.WithField("addr", m.addr).Debug("mock server listening")
	return nil
}

// DropAll closes every accepted connection but keeps listening. It returns
// the number of connections closed.
func (m *MockServer) DropAll() int {
	m.mu.Lock()
	conns := m.takeConnsLocked()
	m.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	return len(conns)
}

// Stop closes the listener and every accepted connection. The address is
// kept so Start can reopen it.
func (m *MockServer) Stop() error {
	m.mu.Lock()
	ln := m.listener
	m.listener = nil
	conns := m.takeConnsLocked()
	m.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	if ln == nil {
		return nil
	}
	return ln.Close()
}

// Close stops the server and waits for its goroutines.
func (m *MockServer) Close() error {
	err := m.Stop()
	m.wg.Wait()
	return err
}

func (m *MockServer) takeConnsLocked() []net.Conn {
	conns := make([]net.Conn, 0, len(m.conns))
	for c := range m.conns {
		conns = append(conns, c)
	}
	clear(m.conns)
	return conns
}

func (m *MockServer) acceptLoop(ln net.Listener) {
	defer m.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}

		m.mu.Lock()
		if m.listener != ln {
			m.mu.Unlock()
			conn.Close()
			return
		}
		m.conns[conn] = struct{}{}
		m.accepted++
		greeting := m.greeting
		m.mu.Unlock()

		m.wg.Add(1)
		go m.handleConnection(conn, greeting)
	}
}

func (m *MockServer) handleConnection(conn net.Conn, greeting []byte) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		delete(m.conns, conn)
		m.mu.Unlock()
		conn.Close()
	}()

	if len(greeting) > 0 {
		if _, err := conn.Write(greeting); err != nil {
			return
		}
	}

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if _, werr := conn.Write(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}
