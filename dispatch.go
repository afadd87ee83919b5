package mqtt

import log "github.com/sirupsen/logrus"

// dispatchIncoming routes one fully-reassembled packet to its handler.
// Grounded on the packet-type switch in mqtt_process_incoming_message from
// gsm_mqtt_client.c. Packet types a client should never receive (CONNECT,
// SUBSCRIBE, UNSUBSCRIBE, PINGREQ) are logged as protocol violations and
// otherwise ignored, per the "protocol violations are logged and ignored"
// error-handling rule; they never tear down the connection.
func (c *Client) dispatchIncoming(h Header, payload []byte) error {
	switch h.Type() {
	case PacketConnack:
		return c.onConnack(payload)
	case PacketPublish:
		return c.onPublish(h, payload)
	case PacketPuback:
		return c.onSimpleAck(payload, reqFlagPuback)
	case PacketPubrec:
		return c.onPubrec(payload)
	case PacketPubrel:
		return c.onPubrel(payload)
	case PacketPubcomp:
		return c.onSimpleAck(payload, reqFlagPubcomp)
	case PacketSuback:
		return c.onSuback(payload)
	case PacketUnsuback:
		return c.onSimpleAck(payload, reqFlagUnsuback)
	case PacketPingresp:
		return c.onPingresp()
	default:
		c.cfg.Logger.WithFields(log.Fields{
			"packet_type": h.Type().String(),
		}).Warn("mqtt: received packet type a client should never receive, ignoring")
		return nil
	}
}

func (c *Client) onConnack(payload []byte) error {
	if c.state != StateAwaitingConnack {
		c.cfg.Logger.Warn("mqtt: unexpected CONNACK, ignoring")
		return nil
	}
	if len(payload) < 2 {
		c.cfg.Logger.Warn("mqtt: truncated CONNACK, ignoring")
		return nil
	}
	sessionPresent := payload[0]&1 != 0
	rc := connectReturnCodeFromWire(payload[1])

	if rc == ReturnCodeAccepted {
		c.state = StateConnected
	}
	// A rejected CONNACK leaves state at StateAwaitingConnack rather than
	// advancing it, mirroring mqtt_conn_cb leaving conn_state untouched on a
	// failed connect: OnClose's wasConnected check then sees a session that
	// never reached StateConnected and reports IsAccepted false.
	c.emit(Event{Type: EventConnect, ConnectReturnCode: rc, SessionPresent: sessionPresent})
	if rc != ReturnCodeAccepted {
		_ = c.transport.Close()
	}
	return nil
}

func (c *Client) onPublish(h Header, payload []byte) error {
	topicLen, ok := readU16(payload)
	if !ok || len(payload) < 2+int(topicLen) {
		return c.ignoreProtocolViolation("truncated PUBLISH topic")
	}
	topic := stringFromBytes(payload[2 : 2+topicLen])
	rest := payload[2+topicLen:]

	qos := h.QoS()
	var packetID uint16
	if qos > QoS0 {
		var ok bool
		packetID, ok = readU16(rest)
		if !ok {
			return c.ignoreProtocolViolation("truncated PUBLISH packet identifier")
		}
		rest = rest[2:]
	}

	switch qos {
	case QoS1:
		_ = c.encodeAck(PacketPuback, packetID)
		c.flush()
	case QoS2:
		_ = c.encodeAck(PacketPubrec, packetID)
		c.flush()
	}

	c.emit(Event{
		Type:    EventPublishRecv,
		Topic:   topic,
		Payload: rest,
		QoS:     qos,
		Retain:  h.Retain(),
		Dup:     h.Dup(),
	})
	for _, hd := range c.handlers {
		if MatchTopic(hd.filter, topic) {
			hd.fn(Message{Topic: topic, Payload: rest, QoS: qos, Retain: h.Retain(), Dup: h.Dup()})
		}
	}
	return nil
}

func (c *Client) onSimpleAck(payload []byte, flag requestFlag) error {
	packetID, ok := readU16(payload)
	if !ok {
		return c.ignoreProtocolViolation("truncated acknowledgement packet identifier")
	}
	r := c.requests.find(packetID, flag)
	if r == nil {
		c.cfg.Logger.WithFields(log.Fields{"packet_id": packetID}).Warn("mqtt: acknowledgement for unknown packet id, ignoring")
		return nil
	}
	c.completeRequest(r, true)
	return nil
}

// onPubrec handles the middle step of the QoS2 handshake: a PUBREC for an
// outgoing publish transitions its request from awaiting-PUBREC to
// awaiting-PUBCOMP and a PUBREL is sent back.
func (c *Client) onPubrec(payload []byte) error {
	packetID, ok := readU16(payload)
	if !ok {
		return c.ignoreProtocolViolation("truncated PUBREC packet identifier")
	}
	r := c.requests.find(packetID, reqFlagPubrec)
	if r == nil {
		c.cfg.Logger.WithFields(log.Fields{"packet_id": packetID}).Warn("mqtt: PUBREC for unknown packet id, ignoring")
		return nil
	}
	r.flags = (r.flags &^ reqFlagPubrec) | reqFlagPubcomp | reqFlagInUse
	_ = c.encodeAck(PacketPubrel, packetID)
	c.flush()
	return nil
}

// onPubrel handles the middle step of the QoS2 handshake for an incoming
// publish: a PUBREL from the peer is answered with a PUBCOMP, completing
// delivery. The application was already notified via EventPublishRecv when
// the PUBLISH itself arrived, mirroring the source client which does not
// re-deliver the payload here.
func (c *Client) onPubrel(payload []byte) error {
	packetID, ok := readU16(payload)
	if !ok {
		return c.ignoreProtocolViolation("truncated PUBREL packet identifier")
	}
	_ = c.encodeAck(PacketPubcomp, packetID)
	c.flush()
	return nil
}

func (c *Client) onSuback(payload []byte) error {
	packetID, ok := readU16(payload)
	if !ok {
		return c.ignoreProtocolViolation("truncated SUBACK packet identifier")
	}
	r := c.requests.find(packetID, reqFlagSuback)
	if r == nil {
		c.cfg.Logger.WithFields(log.Fields{"packet_id": packetID}).Warn("mqtt: SUBACK for unknown packet id, ignoring")
		return nil
	}
	codes := make([]QoSLevel, len(payload)-2)
	for i, b := range payload[2:] {
		codes[i] = QoSLevel(b)
	}
	c.requests.delete(r)
	c.emit(Event{Type: EventSubscribe, PacketID: packetID, SubscribeResults: codes})
	return nil
}

func (c *Client) onPingresp() error {
	if r := c.requests.find(0, reqFlagPingresp); r != nil {
		c.requests.delete(r)
	}
	c.emit(Event{Type: EventKeepAlive})
	return nil
}

func readU16(b []byte) (uint16, bool) {
	if len(b) < 2 {
		return 0, false
	}
	return getUint16(b), true
}

// ignoreProtocolViolation logs msg and returns nil: malformed packets are a
// protocol violation, not a transport failure, so they never tear down the
// connection.
func (c *Client) ignoreProtocolViolation(msg string) error {
	c.cfg.Logger.Warn("mqtt: protocol violation: " + msg)
	return nil
}
