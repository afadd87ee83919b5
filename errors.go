package mqtt

import "errors"

// Sentinel errors returned by Client's application-facing API, mirroring the
// gsmr_t taxonomy (OK/ERR/ERRMEM/CLOSED) the design is based on.
var (
	// ErrGeneric covers malformed arguments and calls made from an invalid
	// connection state (e.g. Connect while a session is already active).
	ErrGeneric = errors.New("mqtt: invalid argument or state")
	// ErrMem is returned when an operation cannot proceed because the tx
	// ring buffer or the request table has no room left. The caller may
	// retry later once OnSent has freed space.
	ErrMem = errors.New("mqtt: insufficient buffer or request slots")
	// ErrClosed is returned by any operation attempted after the client has
	// been closed or before it has connected.
	ErrClosed = errors.New("mqtt: client closed")
	// ErrEmptyTopic is returned by Publish/Subscribe/Unsubscribe when given
	// a zero-length topic.
	ErrEmptyTopic = errors.New("mqtt: empty topic")
	// ErrTopicTooLong is returned by Publish when the topic does not fit
	// the 16-bit length field the wire format allows.
	ErrTopicTooLong = errors.New("mqtt: topic exceeds 65535 bytes")
	// ErrPayloadTooLong is returned when a PUBLISH payload combined with its
	// topic would overflow the packet's remaining-length varint.
	ErrPayloadTooLong = errors.New("mqtt: payload too large for a single packet")
	// ErrRequestAborted marks an EventPublish/EventSubscribe/EventUnsubscribe
	// delivered because the connection tore down before the matching
	// acknowledgement arrived, as opposed to a normal completion.
	ErrRequestAborted = errors.New("mqtt: connection closed before acknowledgement")
	// ErrRequestTimedOut marks a completion event delivered because
	// RequestTimeout elapsed with no acknowledgement. See ClientConfig.RequestTimeout.
	ErrRequestTimedOut = errors.New("mqtt: request timed out waiting for acknowledgement")
)
