package mqtt

import log "github.com/sirupsen/logrus"

// parserState is the incremental fixed-header/remaining-length FSM state,
// grounded on the INIT/CALC_REM_LEN/READ_REM states of mqtt_parse_incoming
// in gsm_mqtt_client.c.
type parserState uint8

const (
	parseInit parserState = iota
	parseCalcRemLen
	parseReadRem
)

// packetParser incrementally reassembles MQTT packets out of byte
// fragments handed to it one Client.OnRecv call at a time. It never blocks
// and never assumes a fragment boundary aligns with a packet boundary.
//
// Two paths exist once a packet's remaining length is known:
//   - fast path: the whole remaining-length payload is already present in
//     the current fragment. dispatch is called with a slice directly into
//     the caller's fragment; nothing is copied.
//   - slow path: the payload straddles more than one fragment. Bytes are
//     copied into buf until the packet is complete, unless doing so would
//     exceed maxSize, in which case the packet is discarded: remaining
//     bytes are still consumed (to stay in sync with the stream) but never
//     stored, and dispatch is never called for it.
type packetParser struct {
	state parserState

	firstByte byte
	remLen    uint32
	remMult   uint32
	remLenN   int // bytes of the remaining-length varint consumed so far

	buf      []byte
	need     uint32 // total payload bytes still needed (slow path)
	overflow bool

	maxSize uint32
	logger  *log.Logger
}

func newPacketParser(maxSize uint32, logger *log.Logger) *packetParser {
	return &packetParser{maxSize: maxSize, logger: logger}
}

func (p *packetParser) reset() {
	p.state = parseInit
	p.remLen = 0
	p.remMult = 0
	p.remLenN = 0
	p.buf = p.buf[:0]
	p.need = 0
	p.overflow = false
}

// feed consumes data, calling dispatch once per complete, non-discarded
// packet with that packet's Header and payload (the bytes after the fixed
// header: variable header + application payload). dispatch must not retain
// the slice it is given beyond the call when it was obtained via the fast
// path, since it may alias the caller's fragment buffer.
func (p *packetParser) feed(data []byte, dispatch func(Header, []byte) error) error {
	for len(data) > 0 {
		switch p.state {
		case parseInit:
			p.firstByte = data[0]
			data = data[1:]
			p.remLen = 0
			p.remMult = 1
			p.remLenN = 0
			p.state = parseCalcRemLen

		case parseCalcRemLen:
			c := data[0]
			data = data[1:]
			p.remLen += uint32(c&0x7F) * p.remMult
			p.remLenN++
			if c&0x80 != 0 {
				if p.remLenN >= maxRemainingLengthSize {
					if p.logger != nil {
						p.logger.Warn("mqtt: remaining-length varint exceeds 4 bytes, resyncing")
					}
					p.state = parseInit
					continue
				}
				p.remMult *= 128
				continue
			}
			if p.remLen == 0 {
				// No body: the packet is complete with its last length byte.
				if err := p.dispatchHeader(nil, dispatch); err != nil {
					return err
				}
				p.state = parseInit
				continue
			}
			p.beginReadRem()

		case parseReadRem:
			if p.remLen == 0 {
				if err := p.dispatchHeader(nil, dispatch); err != nil {
					return err
				}
				p.state = parseInit
				continue
			}
			if p.need == p.remLen && uint32(len(data)) >= p.need {
				// Fast path: the whole payload is already present in this
				// fragment; borrow it without copying.
				payload := data[:p.need]
				data = data[p.need:]
				if err := p.dispatchHeader(payload, dispatch); err != nil {
					return err
				}
				p.state = parseInit
				continue
			}
			n := uint32(len(data))
			if n > p.need {
				n = p.need
			}
			if !p.overflow {
				p.buf = append(p.buf, data[:n]...)
			}
			data = data[n:]
			p.need -= n
			if p.need == 0 {
				if p.overflow {
					if p.logger != nil {
						p.logger.WithFields(log.Fields{
							"remaining_length": p.remLen,
							"max_packet_size":  p.maxSize,
						}).Warn("mqtt: discarding oversized packet")
					}
				} else if err := p.dispatchHeader(p.buf, dispatch); err != nil {
					return err
				}
				p.buf = p.buf[:0]
				p.overflow = false
				p.state = parseInit
			}
		}
	}
	return nil
}

func (p *packetParser) beginReadRem() {
	p.need = p.remLen
	p.overflow = p.remLen > p.maxSize
	if !p.overflow {
		if cap(p.buf) < int(p.remLen) {
			p.buf = make([]byte, 0, p.remLen)
		} else {
			p.buf = p.buf[:0]
		}
	}
	p.state = parseReadRem
}

func (p *packetParser) dispatchHeader(payload []byte, dispatch func(Header, []byte) error) error {
	h := Header{firstByte: p.firstByte, RemainingLength: p.remLen}
	return dispatch(h, payload)
}
