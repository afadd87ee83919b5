package mqtt

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Client is an MQTT v3.1.1 client core driven by a Transport and a single
// internal lock. All application-facing methods (Connect, Publish, ...) and
// all transport-facing callbacks (OnRecv, OnSent, ...) take the same lock,
// so callbacks fired from EventHandler happen with it held: handlers must
// not call back into the Client that raised them and must return promptly,
// mirroring the non-reentrant callback model of the client this design is
// based on.
type Client struct {
	mu sync.Mutex

	cfg       ClientConfig
	transport Transport
	handler   EventHandler

	state ConnState
	info  ClientInfo

	tx       *ringBuffer
	parser   *packetParser
	requests *requestTable
	pid      packetIDGenerator

	writtenTotal uint64
	sentTotal    uint64
	pollTime     time.Duration
	isSending    bool

	handlers []topicHandler

	arg any
}

// topicHandler pairs a topic filter with the callback Handle registers for
// it.
type topicHandler struct {
	filter string
	fn     func(Message)
}

// NewClient constructs a Client bound to transport, delivering lifecycle
// and message events to handler. The client starts StateDisconnected;
// call Connect to begin a session.
func NewClient(transport Transport, handler EventHandler, opts ...ClientOption) *Client {
	cfg := applyOptions(opts)
	c := &Client{
		cfg:       cfg,
		transport: transport,
		handler:   handler,
		tx:        newRingBuffer(cfg.TxBufferLen),
		requests:  newRequestTable(cfg.MaxRequests),
		pid:       newPacketIDGenerator(),
	}
	c.parser = newPacketParser(cfg.MaxPacketSize, cfg.Logger)
	return c
}

// State returns the current connection lifecycle state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the client has a live, fully-handshaked
// session (CONNACK received with an accepted return code).
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnected
}

// SetArg attaches an opaque value to the client for later retrieval,
// mirroring gsm_mqtt_client_set_arg/get_arg's callback-context pattern.
func (c *Client) SetArg(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.arg = v
}

// Arg returns the value last passed to SetArg, or nil.
func (c *Client) Arg() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.arg
}

// Connect begins dialing addr and, once the transport reports success,
// sends a CONNECT packet built from info. Events are delivered on
// EventConnect once a CONNACK (or a transport failure) is observed.
func (c *Client) Connect(addr string, info ClientInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDisconnected {
		return ErrGeneric
	}
	c.info = info
	c.requests.reset()
	c.tx.reset()
	c.parser.reset()
	c.state = StateDialing
	if err := c.transport.Dial(addr); err != nil {
		c.state = StateDisconnected
		return err
	}
	return nil
}

// OnConnected is called by the transport once the underlying connection is
// up. It sends the CONNECT packet and moves to StateAwaitingConnack.
func (c *Client) OnConnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDialing {
		return
	}
	if err := c.encodeConnect(c.info); err != nil {
		c.logProtocolError("failed to encode CONNECT", err)
		c.teardown(false)
		return
	}
	c.state = StateAwaitingConnack
	c.flush()
}

// OnConnError is called by the transport when Dial or an in-progress
// connection fails before a CONNACK was ever received.
func (c *Client) OnConnError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	wasConnecting := c.state == StateDialing || c.state == StateAwaitingConnack
	c.state = StateDisconnected
	if wasConnecting {
		c.emit(Event{Type: EventConnect, ConnectReturnCode: ReturnCodeTCPFailed})
	}
	c.emit(Event{Type: EventClosed, IsAccepted: false})
}

// Handle registers fn to be called with every inbound PUBLISH whose topic
// matches filter, in addition to the EventPublishRecv delivered to the
// client's EventHandler. fn runs synchronously under Client's lock, same as
// EventHandler, and must not call back into the Client. Returns
// ErrEmptyTopic if filter uses wildcards illegally.
func (c *Client) Handle(filter string, fn func(Message)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !ValidTopicFilter(filter) {
		return ErrEmptyTopic
	}
	c.handlers = append(c.handlers, topicHandler{filter: filter, fn: fn})
	return nil
}

// Publish sends a PUBLISH with the given topic, payload and QoS. It
// allocates a request table slot, returning ErrMem if none is free: for
// QoS1 and QoS2 the slot tracks the acknowledgement handshake, for QoS0 it
// is held until OnSent confirms the packet's bytes as sent.
func (c *Client) Publish(topic string, payload []byte, qos QoSLevel, retain bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected {
		return ErrClosed
	}
	if topic == "" {
		return ErrEmptyTopic
	}
	if len(topic) > 0xFFFF {
		return ErrTopicTooLong
	}
	qos = qos.clamp()

	var packetID uint16
	var r *request
	if qos > QoS0 {
		packetID = c.pid.generate()
		var ok bool
		r, ok = c.requests.create(packetID, pubrecFlagFor(qos))
		if !ok {
			return ErrMem
		}
	} else {
		var ok bool
		r, ok = c.requests.create(0, reqFlagQoS0Pub)
		if !ok {
			return ErrMem
		}
	}
	n, err := c.encodePublish(topic, payload, qos, retain, false, packetID)
	if err != nil {
		c.requests.delete(r)
		return err
	}
	if qos > QoS0 {
		r.lastSend = c.now()
	} else {
		// Delivered to the application only once sentTotal confirms these
		// bytes actually left the ring buffer; see OnSent.
		r.expectedSentLen = c.writtenTotal + uint64(n)
	}
	c.flush()
	return nil
}

func pubrecFlagFor(qos QoSLevel) requestFlag {
	if qos == QoS2 {
		return reqFlagPubrec
	}
	return reqFlagPuback
}

// Subscribe sends a SUBSCRIBE for the given topic filters, one QoS per
// filter. SUBACK delivery is reported via EventSubscribe.
func (c *Client) Subscribe(filters []string, qos []QoSLevel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected {
		return ErrClosed
	}
	if len(filters) == 0 || len(filters) != len(qos) {
		return ErrGeneric
	}
	for _, f := range filters {
		if f == "" {
			return ErrEmptyTopic
		}
	}
	packetID := c.pid.generate()
	r, ok := c.requests.create(packetID, reqFlagSuback)
	if !ok {
		return ErrMem
	}
	if err := c.encodeSubscribe(packetID, filters, qos); err != nil {
		c.requests.delete(r)
		return err
	}
	r.lastSend = c.now()
	c.flush()
	return nil
}

// Unsubscribe sends an UNSUBSCRIBE for the given topic filters. UNSUBACK
// delivery is reported via EventUnsubscribe.
func (c *Client) Unsubscribe(filters []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected {
		return ErrClosed
	}
	if len(filters) == 0 {
		return ErrGeneric
	}
	for _, f := range filters {
		if f == "" {
			return ErrEmptyTopic
		}
	}
	packetID := c.pid.generate()
	r, ok := c.requests.create(packetID, reqFlagUnsuback)
	if !ok {
		return ErrMem
	}
	if err := c.encodeUnsubscribe(packetID, filters); err != nil {
		c.requests.delete(r)
		return err
	}
	r.lastSend = c.now()
	c.flush()
	return nil
}

// Disconnect sends a DISCONNECT (when connected) and closes the transport.
// It returns ErrClosed if the client is already disconnected or
// disconnecting, and otherwise the transport's Close error; EventClosed
// with IsAccepted == true follows once teardown completes.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDisconnected || c.state == StateDisconnecting {
		return ErrClosed
	}
	if c.state == StateConnected {
		_ = c.encodeDisconnect()
		c.flush()
	}
	c.state = StateDisconnecting
	return c.transport.Close()
}

// OnRecv feeds newly received bytes into the parser, dispatching any
// complete packets synchronously before returning.
func (c *Client) OnRecv(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDisconnected {
		return
	}
	c.pollTime = 0
	err := c.parser.feed(data, c.dispatchIncoming)
	if err != nil {
		c.logProtocolError("incoming packet processing failed", err)
		c.teardown(c.state == StateConnected)
		return
	}
	c.transport.Recved(len(data))
}

// OnSent is called by the transport once n bytes from the last Send (or an
// earlier one) have been fully written, freeing that much of the tx ring
// buffer. Mirrors mqtt_data_sent_cb's bookkeeping, including the QoS0
// send-complete event fan-out.
func (c *Client) OnSent(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tx.skip(n)
	c.sentTotal += uint64(n)
	c.pollTime = 0
	c.isSending = false
	for _, r := range c.requests.drainReady(c.sentTotal) {
		c.emit(Event{Type: EventPublish, PacketID: r.packetID})
		c.requests.delete(r)
	}
	c.flush()
}

// OnPoll should be called regularly (e.g. every 500ms, mirroring
// pollIntervalMS) to drive the keep-alive timer and, if configured, expire
// stale pending requests.
func (c *Client) OnPoll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected {
		return
	}
	now := c.nowTime()
	c.pollTime += time.Duration(pollIntervalMS) * time.Millisecond

	if c.info.KeepAlive > 0 {
		if c.pollTime >= time.Duration(c.info.KeepAlive)*time.Second && c.requests.find(0, reqFlagPingresp) == nil {
			if err := c.encodePingreq(); err == nil {
				if r, ok := c.requests.create(0, reqFlagPingresp); ok {
					r.lastSend = c.now()
				}
				c.pollTime = 0
				c.flush()
			}
		}
	}

	if c.cfg.RequestTimeout > 0 {
		c.requests.forEach(func(r *request) {
			if r.lastSend.unixNano == 0 {
				return
			}
			sentAt := time.Unix(0, r.lastSend.unixNano)
			if now.Sub(sentAt) > c.cfg.RequestTimeout {
				c.completeRequest(r, false)
			}
		})
	}
}

// OnClose is called by the transport once the underlying connection has
// fully torn down, whether in response to Disconnect's Close call or
// because the peer or network closed it unexpectedly.
func (c *Client) OnClose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	// A connection that had completed its handshake is reported as
	// accepted even when the transport, not the application, ended it:
	// the application already observed a live session and whatever it
	// sent is presumed delivered up to that point. See the "close accept"
	// open question in the design notes.
	wasConnected := c.state == StateConnected || c.state == StateDisconnecting
	c.teardown(wasConnected)
}

func (c *Client) teardown(isAccepted bool) {
	prevState := c.state
	c.state = StateDisconnected
	c.requests.deleteAll(func(r *request) {
		c.failRequest(r)
	})
	c.tx.reset()
	c.parser.reset()
	c.writtenTotal = 0
	c.sentTotal = 0
	c.pollTime = 0
	c.isSending = false
	if prevState != StateDisconnected {
		c.emit(Event{Type: EventClosed, IsAccepted: isAccepted})
	}
}

// nowTime returns the current time from the configured Clock.
func (c *Client) nowTime() time.Time {
	return c.cfg.Clock.Now()
}

// now returns the current time as the compact timeValue stored in pending
// requests.
func (c *Client) now() timeValue {
	return timeValue{unixNano: c.nowTime().UnixNano()}
}

// flush hands the next contiguous, unsent block of the tx ring buffer to
// the transport. It does not advance the buffer's tail itself: that only
// happens once OnSent reports the bytes as delivered, at which point
// flush's caller (OnSent) calls flush again to push the block that follows
// a wrap, if any. A Send already in flight blocks any further flush until
// OnSent clears it, since the transport is allowed to complete Send
// asynchronously and a second flush would hand it the same still-in-flight
// bytes again. Grounded on the write loop in gsm_mqtt_client.c's send_data
// (the is_sending guard at :396, set at :406, cleared in mqtt_data_sent_cb
// at :859), generalized from a one-shot NETCONN write to the repeatable
// Transport.Send interface.
func (c *Client) flush() {
	if c.isSending {
		return
	}
	block := c.tx.linearReadBlock()
	if len(block) == 0 {
		// Empty: restart at the front of the array so the next packet goes
		// out in one contiguous Send.
		c.tx.reset()
		return
	}
	if err := c.transport.Send(block); err != nil {
		c.logProtocolError("transport send failed", err)
		c.teardown(c.state == StateConnected)
		return
	}
	c.isSending = true
	c.writtenTotal += uint64(len(block))
}

func (c *Client) emit(ev Event) {
	if c.handler != nil {
		c.handler(c, ev)
	}
}

func (c *Client) logProtocolError(msg string, err error) {
	c.cfg.Logger.WithFields(log.Fields{
		"state": c.state.String(),
		"error": err,
	}).Warn(msg)
}

// completeRequest finishes a pending request acknowledged by the peer
// (ok==true) or expired via RequestTimeout (ok==false), emitting the
// matching event and freeing its slot.
func (c *Client) completeRequest(r *request, ok bool) {
	var err error
	if !ok {
		err = ErrRequestTimedOut
	}
	switch {
	case r.flags&reqFlagSuback != 0:
		c.emit(Event{Type: EventSubscribe, PacketID: r.packetID, Err: err})
	case r.flags&reqFlagUnsuback != 0:
		c.emit(Event{Type: EventUnsubscribe, PacketID: r.packetID, Err: err})
	case r.flags&(reqFlagPuback|reqFlagPubrec|reqFlagPubcomp) != 0:
		c.emit(Event{Type: EventPublish, PacketID: r.packetID, Err: err})
	}
	c.requests.delete(r)
}

// failRequest finishes a request with no successful acknowledgement,
// called when the connection tears down with requests still pending.
// Mirrors mqtt_closed_cb's drain loop: every outstanding request is
// reported rather than silently dropped.
func (c *Client) failRequest(r *request) {
	switch {
	case r.flags&reqFlagSuback != 0:
		c.emit(Event{Type: EventSubscribe, PacketID: r.packetID, Err: ErrRequestAborted})
	case r.flags&reqFlagUnsuback != 0:
		c.emit(Event{Type: EventUnsubscribe, PacketID: r.packetID, Err: ErrRequestAborted})
	case r.flags&(reqFlagPuback|reqFlagPubrec|reqFlagPubcomp|reqFlagQoS0Pub) != 0:
		c.emit(Event{Type: EventPublish, PacketID: r.packetID, Err: ErrRequestAborted})
	}
}
