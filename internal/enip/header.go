// Package enip implements the EtherNet/IP encapsulation layer: the
// per-connection endianness probe, the 24-byte encapsulation header codec,
// and the Common Packet Format (CPF) item-list codec carried inside
// SendRRData/SendUnitData payloads.
package enip

import (
	"encoding/binary"
	"errors"
)

// Command codes recognized by the Encapsulation Dispatcher (spec §4.3).
const (
	CmdNOP             uint16 = 0x0000
	CmdListServices    uint16 = 0x0004
	CmdListIdentity    uint16 = 0x0063
	CmdRegisterSession uint16 = 0x0065
	CmdUnregisterSess  uint16 = 0x0066
	CmdSendRRData      uint16 = 0x006F
	CmdSendUnitData    uint16 = 0x0070
)

// wellKnownCommands is consulted by the endianness probe (spec §4.1 step 3).
var wellKnownCommands = map[uint16]bool{
	CmdListServices:    true,
	CmdListIdentity:    true,
	CmdRegisterSession: true,
	CmdUnregisterSess:  true,
	CmdSendRRData:      true,
}

// Encapsulation status codes (spec §4.3, §7). Values are non-contiguous,
// so they're spelled out individually rather than derived.
const (
	StatusSuccess              uint32 = 0x00000000
	StatusInvalidCommand       uint32 = 0x00000001
	StatusInsufficientMemory   uint32 = 0x00000011
	StatusInvalidSessionHandle uint32 = 0x00000065
	StatusInvalidLength        uint32 = 0x00000069
	StatusUnsupportedProtocol  uint32 = 0x0000006A
)

const (
	// HeaderLen is the fixed size of the encapsulation header.
	HeaderLen = 24
	// MaxFrameLen is the largest legal total frame length (spec §4.1 step 4).
	MaxFrameLen = 65535
)

// ErrIncomplete indicates the buffer does not yet hold a whole frame.
var ErrIncomplete = errors.New("enip: incomplete frame")

// ErrUnrecoverable indicates the framing cannot be trusted and the
// connection's buffer must be dropped (spec §4.1 step 4).
var ErrUnrecoverable = errors.New("enip: unrecoverable framing")

// Header is the 24-byte EtherNet/IP encapsulation header.
type Header struct {
	Command       uint16
	Length        uint16
	SessionHandle uint32
	Status        uint32
	SenderContext [8]byte
	Options       uint32
}

// Packet is a decoded encapsulation frame: header plus payload.
type Packet struct {
	Header  Header
	Payload []byte
}

// DecodeHeader reads a 24-byte header from buf in the given byte order.
// buf must be at least HeaderLen bytes.
func DecodeHeader(order binary.ByteOrder, buf []byte) Header {
	var h Header
	h.Command = order.Uint16(buf[0:2])
	h.Length = order.Uint16(buf[2:4])
	h.SessionHandle = order.Uint32(buf[4:8])
	h.Status = order.Uint32(buf[8:12])
	copy(h.SenderContext[:], buf[12:20])
	h.Options = order.Uint32(buf[20:24])
	return h
}

// EncodeHeader writes h into a fresh HeaderLen-byte slice using order.
func EncodeHeader(order binary.ByteOrder, h Header) []byte {
	buf := make([]byte, HeaderLen)
	order.PutUint16(buf[0:2], h.Command)
	order.PutUint16(buf[2:4], h.Length)
	order.PutUint32(buf[4:8], h.SessionHandle)
	order.PutUint32(buf[8:12], h.Status)
	copy(buf[12:20], h.SenderContext[:])
	order.PutUint32(buf[20:24], h.Options)
	return buf
}

// DecodePacket decodes a full frame (header + payload) that has already
// been sliced to exactly its frame length by the Stream Reassembler.
func DecodePacket(order binary.ByteOrder, frame []byte) (Packet, error) {
	if len(frame) < HeaderLen {
		return Packet{}, ErrIncomplete
	}
	h := DecodeHeader(order, frame)
	payload := frame[HeaderLen:]
	// Lenient mode (spec §4.2): accept payload shorter than declared
	// length only if the frame itself was sized correctly by the
	// reassembler; we never trust h.Length beyond what's present.
	if int(h.Length) <= len(payload) {
		payload = payload[:h.Length]
	}
	return Packet{Header: h, Payload: payload}, nil
}

// EncodePacket builds a response frame: header.Length is recomputed from
// len(payload), options are always written as 0, and the remaining fields
// (including sender context) are taken from h as set by the caller
// (normally copied from the request header).
func EncodePacket(order binary.ByteOrder, h Header, payload []byte) []byte {
	h.Length = uint16(len(payload))
	h.Options = 0
	out := EncodeHeader(order, h)
	out = append(out, payload...)
	return out
}

// ResponseHeader builds the response header skeleton for a request:
// same command, sender context, and (unless overridden) session handle,
// with options zeroed per the response construction contract (spec §4.2).
func ResponseHeader(req Header, status uint32) Header {
	return Header{
		Command:       req.Command,
		SessionHandle: req.SessionHandle,
		Status:        status,
		SenderContext: req.SenderContext,
		Options:       0,
	}
}
