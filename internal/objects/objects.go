// Package objects implements the fixed CIP object model: Identity,
// Message Router, and Connection Manager attribute fetchers (spec §4.7).
// All multi-byte integers here are little-endian, per CIP's own wire
// convention, independent of the encapsulation's detected byte order.
package objects

import (
	"encoding/binary"

	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/cip/message"
)

const (
	ClassIdentity          uint16 = 0x01
	ClassMessageRouter     uint16 = 0x02
	ClassConnectionManager uint16 = 0x06
)

// Identity holds the static device identity attributes (spec §3 "Device
// identity", §4.7).
type Identity struct {
	VendorID    uint16
	DeviceType  uint16
	ProductCode uint32
	RevMajor    uint8
	RevMinor    uint8
	Status      uint16
	Serial      uint32
	ProductName string
}

// GetAttributeSingle returns the encoded attribute value for the given
// instance/attribute, or a CIP error status (spec §4.7 table).
func (id Identity) GetAttributeSingle(instance uint16, attribute uint16) ([]byte, uint8) {
	if instance != 0 && instance != 1 {
		return nil, message.StatusObjectDoesNotExist
	}
	switch attribute {
	case 1:
		return le16(id.VendorID), message.StatusSuccess
	case 2:
		return le16(id.DeviceType), message.StatusSuccess
	case 3:
		return le16(uint16(id.ProductCode & 0xFFFF)), message.StatusSuccess
	case 4:
		return []byte{id.RevMajor, id.RevMinor}, message.StatusSuccess
	case 5:
		return le16(0x0001), message.StatusSuccess
	case 6:
		return le32(0x00000000), message.StatusSuccess
	case 7:
		return shortString(id.ProductName), message.StatusSuccess
	default:
		return nil, message.StatusAttributeNotSupported
	}
}

// GetAttributeAll concatenates all Identity attributes in attribute order
// (spec §4.6 "0x01 Get_Attribute_All").
func (id Identity) GetAttributeAll(instance uint16) ([]byte, uint8) {
	if instance != 0 && instance != 1 {
		return nil, message.StatusObjectDoesNotExist
	}
	var out []byte
	out = append(out, le16(id.VendorID)...)
	out = append(out, le16(id.DeviceType)...)
	out = append(out, le16(uint16(id.ProductCode&0xFFFF))...)
	out = append(out, id.RevMajor, id.RevMinor)
	out = append(out, le16(0x0001)...)
	out = append(out, le32(id.Serial)...)
	out = append(out, shortString(id.ProductName)...)
	return out, message.StatusSuccess
}

// MessageRouter implements class 0x02's fixed attributes (spec §4.7).
type MessageRouter struct{}

func (MessageRouter) GetAttributeSingle(instance uint16, attribute uint16) ([]byte, uint8) {
	if instance != 0 && instance != 1 {
		return nil, message.StatusObjectDoesNotExist
	}
	switch attribute {
	case 1:
		return le16(3), message.StatusSuccess
	case 2, 3:
		return le16(0), message.StatusSuccess
	default:
		return nil, message.StatusAttributeNotSupported
	}
}

// ConnectionManager implements class 0x06's fixed attributes (spec §4.7).
// Attribute 2 reports the live session count, supplied by the caller since
// the object itself holds no session state.
type ConnectionManager struct {
	SessionCount func() int
}

func (c ConnectionManager) GetAttributeSingle(instance uint16, attribute uint16) ([]byte, uint8) {
	if instance != 0 && instance != 1 {
		return nil, message.StatusObjectDoesNotExist
	}
	switch attribute {
	case 1:
		return le16(128), message.StatusSuccess
	case 2:
		count := 0
		if c.SessionCount != nil {
			count = c.SessionCount()
		}
		return le16(uint16(count)), message.StatusSuccess
	default:
		return nil, message.StatusAttributeNotSupported
	}
}

func le16(v uint16) []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, v)
	return buf
}

func le32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return buf
}

// shortString encodes a CIP SHORT_STRING: one length byte then ASCII
// bytes, truncated to 32 (spec §3 "product_name: string ≤ 32 ASCII bytes").
func shortString(s string) []byte {
	data := []byte(s)
	if len(data) > 32 {
		data = data[:32]
	}
	out := make([]byte, 1+len(data))
	out[0] = byte(len(data))
	copy(out[1:], data)
	return out
}
