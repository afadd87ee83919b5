package mqtt

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// ClientInfo carries the fields an MQTT CONNECT packet needs to identify and
// authenticate a session. Username, Password and WillTopic are optional;
// their presence is signalled on the wire by the connect flags byte.
type ClientInfo struct {
	ClientID string
	Username string
	Password []byte

	WillTopic   string
	WillMessage []byte
	WillQoS     QoSLevel
	WillRetain  bool

	KeepAlive uint16
}

// ClientConfig holds the tunables Client needs beyond the per-connection
// ClientInfo, mirroring the split soypat-natiu-mqtt's ClientConfig/
// ClientOption pattern draws between "what identifies this session" and
// "how this client instance behaves".
type ClientConfig struct {
	// TxBufferLen sizes the outgoing ring buffer in bytes. Rounded up to
	// the next power of two. Zero selects defaultBufferLen.
	TxBufferLen int
	// MaxPacketSize bounds the packet body the parser will hold across
	// fragments; a larger body split over fragments is discarded. A body
	// that arrives whole in one fragment is handed on as a slice of that
	// fragment, which the caller's Transport supplies, and is not subject
	// to this bound. Zero selects defaultBufferLen.
	MaxPacketSize uint32
	// MaxRequests bounds the number of requests that may be outstanding at
	// once: QoS>0 publishes, subscribes and unsubscribes awaiting their
	// ack, QoS0 publishes awaiting send confirmation, and an unanswered
	// PINGREQ. Zero selects defaultMaxRequests.
	MaxRequests int
	// RequestTimeout, when non-zero, is the duration after which a pending
	// request is dropped and reported as failed even without a matching
	// ack. Left at its zero value, pending requests never time out on
	// their own, matching the source client, which tracks last_send but
	// never actually consults it; see the "pending-request timeout" open
	// question in the design notes. OnPoll is what advances this timer, so
	// it has no effect unless the transport calls OnPoll regularly.
	RequestTimeout time.Duration
	// Clock supplies the current time for request-timeout bookkeeping
	// (keep-alive counts OnPoll calls instead). Defaults to the real wall
	// clock.
	Clock Clock
	// Logger receives structured diagnostics for protocol violations and
	// transport teardown. Defaults to logrus's standard logger.
	Logger *log.Logger
}

// ClientOption configures a ClientConfig. Options are applied in order, so
// later options override earlier ones.
type ClientOption func(*ClientConfig)

// DefaultClientConfig returns the zero-value-safe baseline Client uses when
// no options are given.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		TxBufferLen:   defaultBufferLen,
		MaxPacketSize: defaultBufferLen,
		MaxRequests:   defaultMaxRequests,
		Clock:         realClock{},
		Logger:        log.StandardLogger(),
	}
}

// WithTxBufferLen sets the outgoing ring buffer size.
func WithTxBufferLen(n int) ClientOption {
	return func(c *ClientConfig) { c.TxBufferLen = n }
}

// WithMaxRequests sets the request table capacity.
func WithMaxRequests(n int) ClientOption {
	return func(c *ClientConfig) { c.MaxRequests = n }
}

// WithMaxPacketSize bounds the largest incoming packet the parser will
// buffer in full; larger packets that arrive split across fragments are
// discarded per the parser's overflow policy. See ClientConfig.MaxPacketSize.
func WithMaxPacketSize(n uint32) ClientOption {
	return func(c *ClientConfig) { c.MaxPacketSize = n }
}

// WithRequestTimeout enables request expiry. See ClientConfig.RequestTimeout.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *ClientConfig) { c.RequestTimeout = d }
}

// WithClock overrides the time source, primarily for tests.
func WithClock(clk Clock) ClientOption {
	return func(c *ClientConfig) { c.Clock = clk }
}

// WithLogger overrides the logrus logger used for diagnostics.
func WithLogger(l *log.Logger) ClientOption {
	return func(c *ClientConfig) { c.Logger = l }
}

func applyOptions(opts []ClientOption) ClientConfig {
	cfg := DefaultClientConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.TxBufferLen <= 0 {
		cfg.TxBufferLen = defaultBufferLen
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = defaultMaxRequests
	}
	if cfg.MaxPacketSize <= 0 {
		cfg.MaxPacketSize = defaultBufferLen
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.StandardLogger()
	}
	return cfg
}
