package mqtt

// checkMemory reports whether the tx ring buffer has room for n more bytes,
// mirroring output_check_enough_memory's preflight in gsm_mqtt_client.c:
// every encoder checks before writing a single byte, so a packet is either
// written in full or not written at all.
func (c *Client) checkMemory(n int) bool {
	return c.tx.free() >= n
}

// writeFixedHeader writes a packet's fixed header: the packed first byte
// followed by the remaining-length varint.
func (c *Client) writeFixedHeader(h Header) {
	c.tx.writeByte(h.firstByte)
	var lb [maxRemainingLengthSize]byte
	n := putVarint(h.RemainingLength, lb[:])
	c.tx.write(lb[:n])
}

func (c *Client) writeU8(b byte) { c.tx.writeByte(b) }

func (c *Client) writeU16(v uint16) {
	var b [2]byte
	putUint16(b[:], v)
	c.tx.write(b[:])
}

// writeString writes a length-prefixed UTF-8 string: 2 byte big-endian
// length followed by the bytes, as every MQTT string field requires.
func (c *Client) writeString(s string) {
	c.writeU16(uint16(len(s)))
	c.tx.write(bytesFromString(s))
}

func (c *Client) writeData(p []byte) { c.tx.write(p) }

// encodedStringSize is the wire size of a length-prefixed string field.
func encodedStringSize(s string) int { return 2 + len(s) }

// encodeConnect writes a CONNECT packet for info, returning ErrMem if the
// tx buffer has no room. The clean-session flag is always set: persistent
// broker sessions are out of scope, matching
// gsm_mqtt_client.c's unconditional
// "flags |= MQTT_FLAG_CONNECT_CLEAN_SESSION". Grounded on
// write_fixed_header/write_string's sequencing in gsm_mqtt_client.c and on
// soypat-natiu-mqtt's encodeConnect.
func (c *Client) encodeConnect(info ClientInfo) error {
	varHeaderLen := 2 + len(defaultProtocol) + 1 /*level*/ + 1 /*flags*/ + 2 /*keepalive*/
	payloadLen := encodedStringSize(info.ClientID)

	flags := byte(1 << 1)
	hasWill := info.WillTopic != ""
	if hasWill {
		flags |= 1 << 2
		flags |= byte(info.WillQoS.clamp()) << 3
		if info.WillRetain {
			flags |= 1 << 5
		}
		payloadLen += encodedStringSize(info.WillTopic) + 2 + len(info.WillMessage)
	}
	if info.Username != "" {
		flags |= 1 << 7
		payloadLen += encodedStringSize(info.Username)
	}
	if len(info.Password) > 0 {
		flags |= 1 << 6
		payloadLen += 2 + len(info.Password)
	}

	remLen := uint32(varHeaderLen + payloadLen)
	h := newHeader(PacketConnect, false, QoS0, false, remLen)
	if !c.checkMemory(h.size() + int(remLen)) {
		return ErrMem
	}

	c.writeFixedHeader(h)
	c.writeString(defaultProtocol)
	c.writeU8(defaultProtocolLevel)
	c.writeU8(flags)
	c.writeU16(info.KeepAlive)
	c.writeString(info.ClientID)
	if hasWill {
		c.writeString(info.WillTopic)
		c.writeU16(uint16(len(info.WillMessage)))
		c.writeData(info.WillMessage)
	}
	if info.Username != "" {
		c.writeString(info.Username)
	}
	if len(info.Password) > 0 {
		c.writeU16(uint16(len(info.Password)))
		c.writeData(info.Password)
	}
	return nil
}

// encodePublish writes a PUBLISH packet. packetID is only written when qos
// > 0, matching hasPacketIdentifier. It returns the total number of bytes
// written (fixed header included) so callers can compute a send-complete
// watermark for QoS0 publishes.
func (c *Client) encodePublish(topic string, payload []byte, qos QoSLevel, retain, dup bool, packetID uint16) (int, error) {
	varHeaderLen := encodedStringSize(topic)
	if PacketPublish.hasPacketIdentifier(qos) {
		varHeaderLen += 2
	}
	if uint64(varHeaderLen)+uint64(len(payload)) > maxRemainingLengthValue {
		return 0, ErrPayloadTooLong
	}
	remLen := uint32(varHeaderLen + len(payload))
	h := newHeader(PacketPublish, dup, qos, retain, remLen)
	total := h.size() + int(remLen)
	if !c.checkMemory(total) {
		return 0, ErrMem
	}
	c.writeFixedHeader(h)
	c.writeString(topic)
	if PacketPublish.hasPacketIdentifier(qos) {
		c.writeU16(packetID)
	}
	c.writeData(payload)
	return total, nil
}

// encodeAck writes one of PUBACK/PUBREC/PUBREL/PUBCOMP/UNSUBACK, all of
// which share the same "fixed header + 2 byte packet id" shape. Grounded on
// write_ack_rec_rel_resp in gsm_mqtt_client.c.
func (c *Client) encodeAck(pt PacketType, packetID uint16) error {
	h := newHeader(pt, false, QoS0, false, 2)
	if !c.checkMemory(h.size() + 2) {
		return ErrMem
	}
	c.writeFixedHeader(h)
	c.writeU16(packetID)
	return nil
}

// encodeSubscribe writes a SUBSCRIBE packet with one or more topic filters.
func (c *Client) encodeSubscribe(packetID uint16, filters []string, qos []QoSLevel) error {
	payloadLen := 0
	for _, f := range filters {
		payloadLen += encodedStringSize(f) + 1
	}
	remLen := uint32(2 + payloadLen)
	h := newHeader(PacketSubscribe, false, QoS1, false, remLen)
	if !c.checkMemory(h.size() + int(remLen)) {
		return ErrMem
	}
	c.writeFixedHeader(h)
	c.writeU16(packetID)
	for i, f := range filters {
		c.writeString(f)
		c.writeU8(byte(qos[i].clamp()))
	}
	return nil
}

// encodeUnsubscribe writes an UNSUBSCRIBE packet.
func (c *Client) encodeUnsubscribe(packetID uint16, filters []string) error {
	payloadLen := 0
	for _, f := range filters {
		payloadLen += encodedStringSize(f)
	}
	remLen := uint32(2 + payloadLen)
	h := newHeader(PacketUnsubscribe, false, QoS1, false, remLen)
	if !c.checkMemory(h.size() + int(remLen)) {
		return ErrMem
	}
	c.writeFixedHeader(h)
	c.writeU16(packetID)
	for _, f := range filters {
		c.writeString(f)
	}
	return nil
}

// encodePingreq writes a PINGREQ, used by the keep-alive timer.
func (c *Client) encodePingreq() error {
	h := newHeader(PacketPingreq, false, QoS0, false, 0)
	if !c.checkMemory(h.size()) {
		return ErrMem
	}
	c.writeFixedHeader(h)
	return nil
}

// encodeDisconnect writes a DISCONNECT.
func (c *Client) encodeDisconnect() error {
	h := newHeader(PacketDisconnect, false, QoS0, false, 0)
	if !c.checkMemory(h.size()) {
		return ErrMem
	}
	c.writeFixedHeader(h)
	return nil
}
