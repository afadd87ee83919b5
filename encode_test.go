package mqtt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newEncodingClient(bufLen int) *Client {
	return NewClient(&fakeTransport{}, nil, WithTxBufferLen(bufLen))
}

func TestEncodeConnectMinimal(t *testing.T) {
	c := newEncodingClient(128)
	err := c.encodeConnect(ClientInfo{ClientID: "cid", KeepAlive: 60})
	require.NoError(t, err)

	block := c.tx.linearReadBlock()
	require.Equal(t, byte(PacketConnect)<<4, block[0])

	_, n, done := decodeVarint(block[1:])
	require.True(t, done)
	protoStart := 1 + n
	protoLen := getUint16(block[protoStart : protoStart+2])
	require.Equal(t, uint16(4), protoLen)
	require.Equal(t, "MQTT", string(block[protoStart+2:protoStart+2+int(protoLen)]))

	level := block[protoStart+2+int(protoLen)]
	require.Equal(t, byte(defaultProtocolLevel), level)

	flags := block[protoStart+2+int(protoLen)+1]
	require.Equal(t, byte(1<<1), flags, "clean session bit should be the only flag set")
}

func TestEncodeConnectWithWillUsernamePassword(t *testing.T) {
	c := newEncodingClient(256)
	err := c.encodeConnect(ClientInfo{
		ClientID:    "cid",
		Username:    "u",
		Password:    []byte("p"),
		WillTopic:   "last/will",
		WillMessage: []byte("bye"),
		WillQoS:     QoS1,
		WillRetain:  true,
	})
	require.NoError(t, err)
	block := c.tx.linearReadBlock()

	_, n, _ := decodeVarint(block[1:])
	protoStart := 1 + n
	flagsOffset := protoStart + 2 + 4 + 1
	flags := block[flagsOffset]

	require.NotZero(t, flags&(1<<1), "clean session")
	require.NotZero(t, flags&(1<<2), "will flag")
	require.Equal(t, byte(QoS1), (flags>>3)&0b11, "will qos")
	require.NotZero(t, flags&(1<<5), "will retain")
	require.NotZero(t, flags&(1<<6), "password flag")
	require.NotZero(t, flags&(1<<7), "username flag")
}

func TestEncodeConnectReturnsErrMemWhenTooBig(t *testing.T) {
	c := newEncodingClient(4)
	err := c.encodeConnect(ClientInfo{ClientID: "cid"})
	require.ErrorIs(t, err, ErrMem)
}

func TestEncodePublishOmitsPacketIDForQoS0(t *testing.T) {
	c := newEncodingClient(128)
	n, err := c.encodePublish("t", []byte("x"), QoS0, false, false, 0)
	require.NoError(t, err)
	require.Greater(t, n, 0)
	block := c.tx.linearReadBlock()
	h := Header{firstByte: block[0]}
	require.Equal(t, QoS0, h.QoS())

	_, n, _ = decodeVarint(block[1:])
	topicStart := 1 + n
	topicLen := getUint16(block[topicStart : topicStart+2])
	payloadStart := topicStart + 2 + int(topicLen)
	require.Equal(t, "x", string(block[payloadStart:]))
}

func TestEncodePublishIncludesPacketIDForQoS1(t *testing.T) {
	c := newEncodingClient(128)
	_, err := c.encodePublish("t", []byte("x"), QoS1, false, false, 99)
	require.NoError(t, err)
	block := c.tx.linearReadBlock()

	_, n, _ := decodeVarint(block[1:])
	topicStart := 1 + n
	topicLen := getUint16(block[topicStart : topicStart+2])
	pidStart := topicStart + 2 + int(topicLen)
	require.Equal(t, uint16(99), getUint16(block[pidStart:pidStart+2]))
	require.Equal(t, "x", string(block[pidStart+2:]))
}

func TestEncodeSubscribeMultipleFilters(t *testing.T) {
	c := newEncodingClient(128)
	require.NoError(t, c.encodeSubscribe(5, []string{"a", "bb"}, []QoSLevel{QoS0, QoS2}))
	block := c.tx.linearReadBlock()
	require.Equal(t, PacketSubscribe, (Header{firstByte: block[0]}).Type())

	_, n, _ := decodeVarint(block[1:])
	varStart := 1 + n
	require.Equal(t, uint16(5), getUint16(block[varStart:varStart+2]))
}

func TestCheckMemoryPreflightPreventsPartialWrites(t *testing.T) {
	c := newEncodingClient(4)
	before := c.tx.len()
	_, err := c.encodePublish("toolong", make([]byte, 100), QoS0, false, false, 0)
	require.ErrorIs(t, err, ErrMem)
	require.Equal(t, before, c.tx.len(), "a failed encode must not write any bytes")
}
