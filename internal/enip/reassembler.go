package enip

import "encoding/binary"

// Frame is one fully reassembled encapsulation frame, tagged with the byte
// order detected for it.
type Frame struct {
	Order binary.ByteOrder
	Bytes []byte
}

// Reassembler accumulates bytes from one TCP connection and extracts
// whole encapsulation frames (spec §4.1). It holds no socket reference;
// callers feed it bytes as they arrive and drain frames from Next.
type Reassembler struct {
	buf []byte
}

// NewReassembler returns an empty reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// Feed appends freshly read bytes to the internal buffer.
func (r *Reassembler) Feed(b []byte) {
	r.buf = append(r.buf, b...)
}

// Next attempts to extract one frame. It returns ok=false when the buffer
// holds less than a full frame (wait for more bytes); it never blocks.
// dropped is true when unrecoverable framing forced the whole buffer to be
// discarded (spec §4.1 step 4) — callers should log this and keep reading.
func (r *Reassembler) Next() (frame Frame, ok bool, dropped bool) {
	if len(r.buf) < HeaderLen {
		return Frame{}, false, false
	}

	order := DetectByteOrder(r.buf[0:4])
	length := order.Uint16(r.buf[2:4])
	frameLen := HeaderLen + int(length)

	if frameLen < HeaderLen || frameLen > MaxFrameLen {
		r.buf = r.buf[:0]
		return Frame{}, false, true
	}

	if len(r.buf) < frameLen {
		return Frame{}, false, false
	}

	out := make([]byte, frameLen)
	copy(out, r.buf[:frameLen])
	r.buf = r.buf[frameLen:]
	return Frame{Order: order, Bytes: out}, true, false
}

// Reset discards any buffered bytes, used when a connection is abandoned.
func (r *Reassembler) Reset() {
	r.buf = r.buf[:0]
}
