package enip

import (
	"encoding/binary"
	"errors"
)

// CPF item type codes (spec §3 "CPF item").
const (
	ItemNullAddress     uint16 = 0x0000
	ItemUnconnectedData uint16 = 0x00B2
	ItemConnectedAddr   uint16 = 0x00A1
	ItemConnectedData   uint16 = 0x00B1
)

// Item is one Common Packet Format list entry.
type Item struct {
	Type uint16
	Data []byte
}

// CPF is the interface_handle/timeout/item-list payload carried inside
// SendRRData (spec §4.4).
type CPF struct {
	InterfaceHandle uint32
	Timeout         uint16
	Items           []Item
}

// ErrTruncatedCPF is returned when the CPF payload is too short to decode.
var ErrTruncatedCPF = errors.New("enip: truncated CPF payload")

// DecodeCPF parses a SendRRData/SendUnitData payload. It tolerates items
// in any order (spec §4.4): callers use FindUnconnectedData to locate the
// CIP carrier regardless of position.
func DecodeCPF(order binary.ByteOrder, payload []byte) (CPF, error) {
	if len(payload) < 8 {
		return CPF{}, ErrTruncatedCPF
	}
	var cpf CPF
	cpf.InterfaceHandle = order.Uint32(payload[0:4])
	cpf.Timeout = order.Uint16(payload[4:6])
	count := order.Uint16(payload[6:8])

	off := 8
	for i := 0; i < int(count); i++ {
		if off+4 > len(payload) {
			return CPF{}, ErrTruncatedCPF
		}
		itemType := order.Uint16(payload[off : off+2])
		itemLen := order.Uint16(payload[off+2 : off+4])
		off += 4
		if off+int(itemLen) > len(payload) {
			return CPF{}, ErrTruncatedCPF
		}
		data := payload[off : off+int(itemLen)]
		off += int(itemLen)
		cpf.Items = append(cpf.Items, Item{Type: itemType, Data: data})
	}
	return cpf, nil
}

// EncodeCPF serializes a CPF item list using the connection's byte order.
func EncodeCPF(order binary.ByteOrder, cpf CPF) []byte {
	buf := make([]byte, 8)
	order.PutUint32(buf[0:4], cpf.InterfaceHandle)
	order.PutUint16(buf[4:6], cpf.Timeout)
	order.PutUint16(buf[6:8], uint16(len(cpf.Items)))

	for _, item := range cpf.Items {
		hdr := make([]byte, 4)
		order.PutUint16(hdr[0:2], item.Type)
		order.PutUint16(hdr[2:4], uint16(len(item.Data)))
		buf = append(buf, hdr...)
		buf = append(buf, item.Data...)
	}
	return buf
}

// FindUnconnectedData returns the data of the 0x00B2 item that carries the
// embedded CIP request or response (spec §4.4). When allowReorder is true
// (the spec-mandated default), every item is scanned regardless of
// position. When false (enip.cpf.allow_item_reorder: false), only the
// canonical {0x0000, 0x00B2} ordering is accepted; anything else is
// treated as not found.
func (c CPF) FindUnconnectedData(allowReorder bool) ([]byte, bool) {
	if !allowReorder {
		if len(c.Items) == 2 && c.Items[0].Type == ItemNullAddress && c.Items[1].Type == ItemUnconnectedData {
			return c.Items[1].Data, true
		}
		return nil, false
	}
	for _, item := range c.Items {
		if item.Type == ItemUnconnectedData {
			return item.Data, true
		}
	}
	return nil, false
}

// UnconnectedResponse builds the canonical two-item response CPF: a null
// address item followed by the unconnected-data item carrying cipResponse
// (spec §4.4 "Response payload reuses...").
func UnconnectedResponse(interfaceHandle uint32, timeout uint16, cipResponse []byte) CPF {
	return CPF{
		InterfaceHandle: interfaceHandle,
		Timeout:         timeout,
		Items: []Item{
			{Type: ItemNullAddress, Data: nil},
			{Type: ItemUnconnectedData, Data: cipResponse},
		},
	}
}
