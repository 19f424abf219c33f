// Package wire defines the boundary between a pooled connection and the
// database wire codec that speaks over it.
//
// The pool owns the socket; a Protocol owns the bytes. The pool calls the
// Protocol's methods on its scheduler, one at a time, in this order:
//
//	ConnectionMade  once, after the handle is registered
//	DataReceived    zero or more times
//	ConnectionLost  once, after the handle is unregistered
package wire

import (
	"net"
	"sync"
)

// Transport is the send side of an established connection.
type Transport interface {
	// Write sends p over the connection. It is safe for concurrent use.
	Write(p []byte) (int, error)
	// Close tears the connection down. ConnectionLost follows.
	Close() error
	// RemoteAddr returns the remote network address.
	RemoteAddr() net.Addr
}

// Protocol receives the lifecycle and inbound bytes of one connection.
type Protocol interface {
	ConnectionMade(t Transport)
	DataReceived(data []byte)
	ConnectionLost(err error)
}

// Factory builds one Protocol per connection.
type Factory func() Protocol

// Discard is a Protocol that ignores everything it receives.
type Discard struct{}

// NewDiscard is a Factory for Discard.
func NewDiscard() Protocol { return Discard{} }

func (Discard) ConnectionMade(Transport) {}
func (Discard) DataReceived([]byte)      {}
func (Discard) ConnectionLost(error)     {}

// Recorder is a Protocol that keeps what it was given. It is useful for
// debugging a dispatcher and in tests.
type Recorder struct {
	mu        sync.Mutex
	transport Transport
	data      []byte
	made      int
	lost      int
	lostErr   error
}

// NewRecorder is a Factory for *Recorder.
func NewRecorder() Protocol { return &Recorder{} }

func (r *Recorder) ConnectionMade(t Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transport = t
	r.made++
}

func (r *Recorder) DataReceived(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = append(r.data, data...)
}

func (r *Recorder) ConnectionLost(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lost++
	r.lostErr = err
}

// Transport returns the transport passed to ConnectionMade.
func (r *Recorder) Transport() Transport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transport
}

// Data returns a copy of every byte received so far.
func (r *Recorder) Data() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.data...)
}

// Made returns how many times ConnectionMade was called.
func (r *Recorder) Made() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.made
}

// Lost returns how many times ConnectionLost was called and the last error.
func (r *Recorder) Lost() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lost, r.lostErr
}
