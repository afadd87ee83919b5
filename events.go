package mqtt

// EventType identifies the kind of Event delivered to an EventHandler.
type EventType uint8

const (
	// EventConnect fires once after a CONNACK is parsed, or after a
	// transport failure that occurred before one arrived. Check
	// Event.ConnectReturnCode to see the outcome.
	EventConnect EventType = iota
	// EventPublishRecv fires for every inbound PUBLISH, after any QoS1/QoS2
	// acknowledgement has already been queued.
	EventPublishRecv
	// EventPublish fires when an outgoing QoS1 or QoS2 PUBLISH this client
	// sent has been fully acknowledged (PUBACK, or PUBCOMP for QoS2), when
	// the bytes of an outgoing QoS0 PUBLISH have been confirmed sent by
	// OnSent, and, with Err set, when a pending publish is aborted or
	// times out.
	EventPublish
	// EventSubscribe fires when a SUBACK arrives for a pending SUBSCRIBE.
	EventSubscribe
	// EventUnsubscribe fires when an UNSUBACK arrives for a pending
	// UNSUBSCRIBE.
	EventUnsubscribe
	// EventClosed fires exactly once, when the connection has fully torn
	// down, whether from a clean Disconnect or a transport error. Protocol
	// violations are logged and ignored and do not close the connection.
	EventClosed
	// EventKeepAlive fires on every PINGRESP, regardless of whether OnPoll's
	// own bookkeeping was still tracking the outstanding PINGREQ.
	EventKeepAlive
)

// Event describes a single occurrence delivered synchronously to an
// EventHandler while Client's lock is held. Handlers must not call back
// into the Client that raised them; see Concurrency notes on Client.
type Event struct {
	Type EventType

	// Valid when Type == EventConnect.
	ConnectReturnCode ConnectReturnCode
	SessionPresent    bool

	// Valid when Type == EventPublishRecv.
	Topic   string
	Payload []byte
	QoS     QoSLevel
	Retain  bool
	Dup     bool

	// Valid when Type == EventPublish, EventSubscribe, EventUnsubscribe.
	// PacketID is 0 for a QoS0 EventPublish, since QoS0 publishes carry no
	// wire packet identifier.
	PacketID uint16
	// Err is nil for a normal acknowledged completion. It is
	// ErrRequestAborted when the connection closed with this request still
	// pending, or ErrRequestTimedOut when RequestTimeout elapsed first.
	// Always nil outside EventPublish/EventSubscribe/EventUnsubscribe.
	Err error
	// Valid when Type == EventSubscribe: one return code per requested
	// topic filter, in request order. QoSSubfail marks a rejected filter.
	// Nil when Err is set.
	SubscribeResults []QoSLevel

	// Valid when Type == EventClosed. IsAccepted mirrors the source
	// client's is_accepted semantics: true both for a clean shutdown and
	// for a live, previously-CONNECTED session torn down by the transport
	// (see the "close accept" open question in the design notes), false
	// only when the connection never completed its handshake.
	IsAccepted bool
}

// Message is the payload of an inbound PUBLISH delivered to a handler
// registered via Client.Handle, a filter-scoped alternative to switching on
// EventPublishRecv's Topic field by hand.
type Message struct {
	Topic   string
	Payload []byte
	QoS     QoSLevel
	Retain  bool
	Dup     bool
}

// EventHandler receives Client lifecycle and message events. It is invoked
// synchronously from whichever goroutine drives Client's On* methods, with
// Client's internal lock held; it must return promptly and must not call
// back into the same Client.
type EventHandler func(c *Client, ev Event)
