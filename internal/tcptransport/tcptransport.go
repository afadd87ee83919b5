// Package tcptransport implements mqtt.Transport over a plain net.Conn, for
// running the client core outside of a cellular AT-modem context. Grounded
// on the blocking read/write pattern of soypat-natiu-mqtt's RxTx, adapted
// from blocking ReadNextPacket/Write* methods into the asynchronous
// Dial/Send/Close plus OnConnected/OnRecv/OnSent/OnConnError/OnClose
// callback pair the client core expects.
package tcptransport

import (
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Client is the subset of *mqtt.Client this package drives; declared
// locally to avoid an import cycle between the core package and this
// optional transport.
type Client interface {
	OnConnected()
	OnConnError(err error)
	OnRecv(p []byte)
	OnSent(n int)
	OnClose()
}

// Transport dials addr over TCP and pumps bytes between the connection and
// a Client. One Transport serves exactly one connection's lifetime; call
// New again for a subsequent Connect.
type Transport struct {
	client   Client
	dialer   net.Dialer
	readSize int
	logger   *log.Logger

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// Option configures a Transport.
type Option func(*Transport)

// WithReadBufferSize sets the size of the buffer used for each Read call on
// the read-pump goroutine. Defaults to 1024.
func WithReadBufferSize(n int) Option {
	return func(t *Transport) { t.readSize = n }
}

// WithLogger overrides the logrus logger used for connection diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// WithDialTimeout bounds how long Dial waits for the TCP handshake.
func WithDialTimeout(d time.Duration) Option {
	return func(t *Transport) { t.dialer.Timeout = d }
}

// New returns a Transport that will drive client once Dial succeeds.
func New(client Client, opts ...Option) *Transport {
	t := &Transport{
		client:   client,
		readSize: 1024,
		logger:   log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Dial opens a TCP connection to addr ("host:port") and starts the
// read-pump goroutine. Dial itself returns once the dial has been kicked
// off; completion is reported through Client.OnConnected/OnConnError, just
// as mqtt.Transport documents.
func (t *Transport) Dial(addr string) error {
	go func() {
		conn, err := t.dialer.Dial("tcp", addr)
		if err != nil {
			t.logger.WithFields(log.Fields{"addr": addr, "error": err}).Warn("tcptransport: dial failed")
			t.client.OnConnError(err)
			return
		}
		t.mu.Lock()
		t.conn = conn
		t.mu.Unlock()
		t.client.OnConnected()
		t.readPump(conn)
	}()
	return nil
}

func (t *Transport) readPump(conn net.Conn) {
	buf := make([]byte, t.readSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			t.client.OnRecv(buf[:n])
		}
		if err != nil {
			t.mu.Lock()
			t.closed = true
			t.mu.Unlock()
			t.logger.WithFields(log.Fields{"error": err}).Debug("tcptransport: connection closed")
			t.client.OnClose()
			return
		}
	}
}

// Send writes p to the connection in full; net.Conn.Write blocks until the
// kernel has accepted the bytes. On success, completion is reported via
// Client.OnSent from a new goroutine, because Send runs with the Client's
// lock held and OnSent takes that same lock. A failed write is reported
// only through the returned error.
func (t *Transport) Send(p []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return net.ErrClosed
	}
	n, err := conn.Write(p)
	if err != nil {
		return err
	}
	go t.client.OnSent(n)
	return nil
}

// Recved is a no-op: a net.Conn's kernel receive buffer handles flow
// control on its own, so there is nothing to acknowledge back to it.
func (t *Transport) Recved(n int) {}

// Close tears down the TCP connection. The read-pump goroutine observes the
// resulting error and calls Client.OnClose.
func (t *Transport) Close() error {
	t.mu.Lock()
	conn := t.conn
	already := t.closed
	t.closed = true
	t.mu.Unlock()
	if conn == nil || already {
		return nil
	}
	return conn.Close()
}
