package mqtt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// buildPingreq returns the 2 bytes of a complete PINGREQ packet: fixed
// header with type 12, no flags, and a zero remaining length.
func buildPingreq() []byte {
	return []byte{byte(PacketPingreq) << 4, 0x00}
}

// buildPublish builds a QoS0 PUBLISH with the given topic and payload.
func buildPublish(topic string, payload []byte) []byte {
	varHeader := make([]byte, 0, 2+len(topic))
	varHeader = append(varHeader, byte(len(topic)>>8), byte(len(topic)))
	varHeader = append(varHeader, topic...)
	remLen := len(varHeader) + len(payload)
	buf := []byte{byte(PacketPublish) << 4}
	lb := make([]byte, maxRemainingLengthSize)
	n := putVarint(uint32(remLen), lb)
	buf = append(buf, lb[:n]...)
	buf = append(buf, varHeader...)
	buf = append(buf, payload...)
	return buf
}

func TestParserSinglePacketInOneFragment(t *testing.T) {
	p := newPacketParser(1024, nil)
	var got []Header
	err := p.feed(buildPingreq(), func(h Header, payload []byte) error {
		got = append(got, h)
		require.Empty(t, payload)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, PacketPingreq, got[0].Type())
}

func TestParserZeroCopyFastPath(t *testing.T) {
	p := newPacketParser(1024, nil)
	packet := buildPublish("a/b", []byte("payload"))

	var seenPayload []byte
	err := p.feed(packet, func(h Header, payload []byte) error {
		seenPayload = payload
		return nil
	})
	require.NoError(t, err)
	// Fast path: payload aliases the input slice directly.
	require.Equal(t, "payload", string(seenPayload[3+2:]))
}

func TestParserByteByByteFragmentation(t *testing.T) {
	p := newPacketParser(1024, nil)
	packet := buildPublish("topic/x", []byte("hello world"))

	var dispatched int
	var gotTopic string
	for i := range packet {
		err := p.feed(packet[i:i+1], func(h Header, payload []byte) error {
			dispatched++
			topicLen := int(payload[0])<<8 | int(payload[1])
			gotTopic = string(payload[2 : 2+topicLen])
			require.Equal(t, "hello world", string(payload[2+topicLen:]))
			return nil
		})
		require.NoError(t, err)
	}
	require.Equal(t, 1, dispatched)
	require.Equal(t, "topic/x", gotTopic)
}

func TestParserMultiplePacketsAcrossArbitraryFragments(t *testing.T) {
	p := newPacketParser(1024, nil)
	one := buildPingreq()
	two := buildPublish("t", []byte("x"))
	three := buildPingreq()
	stream := append(append(append([]byte{}, one...), two...), three...)

	// Split at awkward, non-packet-aligned offsets.
	splits := [][2]int{{0, 1}, {1, len(one) + 1}, {len(one) + 1, len(stream)}}
	var types []PacketType
	for _, s := range splits {
		err := p.feed(stream[s[0]:s[1]], func(h Header, payload []byte) error {
			types = append(types, h.Type())
			return nil
		})
		require.NoError(t, err)
	}
	require.Equal(t, []PacketType{PacketPingreq, PacketPublish, PacketPingreq}, types)
}

func TestParserOverflowDiscardsButResyncs(t *testing.T) {
	p := newPacketParser(4, nil) // max packet size smaller than the publish below
	oversized := buildPublish("t", make([]byte, 64))
	next := buildPingreq()
	stream := append(append([]byte{}, oversized...), next...)

	// Split inside the oversized body so it has to be reassembled across
	// fragments: a body that arrives whole in one fragment takes the
	// zero-copy fast path and is dispatched whatever its size.
	half := len(oversized) / 2
	var types []PacketType
	for _, frag := range [][]byte{stream[:half], stream[half:]} {
		err := p.feed(frag, func(h Header, payload []byte) error {
			types = append(types, h.Type())
			return nil
		})
		require.NoError(t, err)
	}
	// The oversized packet is discarded silently; only the PINGREQ after it
	// is dispatched.
	require.Equal(t, []PacketType{PacketPingreq}, types)
}

func TestParserZeroRemainingLength(t *testing.T) {
	p := newPacketParser(1024, nil)
	var payloads [][]byte
	err := p.feed(buildPingreq(), func(h Header, payload []byte) error {
		payloads = append(payloads, payload)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	require.Len(t, payloads[0], 0)
}
