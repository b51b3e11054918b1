package enip

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestCPFRoundTrip(t *testing.T) {
	cipReq := []byte{0x01, 0x02, 0x20, 0x01, 0x24, 0x01}
	cpf := CPF{
		InterfaceHandle: 0,
		Timeout:         10,
		Items: []Item{
			{Type: ItemNullAddress, Data: nil},
			{Type: ItemUnconnectedData, Data: cipReq},
		},
	}

	encoded := EncodeCPF(binary.BigEndian, cpf)
	decoded, err := DecodeCPF(binary.BigEndian, encoded)
	if err != nil {
		t.Fatalf("DecodeCPF: %v", err)
	}
	if len(decoded.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(decoded.Items))
	}
	data, ok := decoded.FindUnconnectedData(true)
	if !ok {
		t.Fatal("expected to find unconnected data item")
	}
	if !bytes.Equal(data, cipReq) {
		t.Errorf("cip data mismatch: got %x want %x", data, cipReq)
	}
}

func TestCPFToleratesItemReordering(t *testing.T) {
	cipReq := []byte{0xAA, 0xBB}
	// Unconnected data item first, null address second — spec §4.4
	// requires tolerance for any item order.
	cpf := CPF{
		Items: []Item{
			{Type: ItemUnconnectedData, Data: cipReq},
			{Type: ItemNullAddress, Data: nil},
		},
	}
	encoded := EncodeCPF(binary.BigEndian, cpf)
	decoded, err := DecodeCPF(binary.BigEndian, encoded)
	if err != nil {
		t.Fatalf("DecodeCPF: %v", err)
	}
	data, ok := decoded.FindUnconnectedData(true)
	if !ok || !bytes.Equal(data, cipReq) {
		t.Fatal("expected unconnected data item regardless of position")
	}
}

func TestCPFFindUnconnectedDataStrictRejectsReordering(t *testing.T) {
	cpf := CPF{
		Items: []Item{
			{Type: ItemUnconnectedData, Data: []byte{0xAA}},
			{Type: ItemNullAddress, Data: nil},
		},
	}
	if _, ok := cpf.FindUnconnectedData(false); ok {
		t.Fatal("expected strict mode to reject reordered items")
	}
}

func TestCPFTruncatedPayload(t *testing.T) {
	if _, err := DecodeCPF(binary.BigEndian, []byte{0x00, 0x01}); err != ErrTruncatedCPF {
		t.Fatalf("expected ErrTruncatedCPF, got %v", err)
	}
}

func TestUnconnectedResponseShape(t *testing.T) {
	resp := []byte{0x81, 0x00, 0x00, 0x00}
	cpf := UnconnectedResponse(0, 10, resp)
	if len(cpf.Items) != 2 {
		t.Fatalf("expected exactly 2 response items, got %d", len(cpf.Items))
	}
	if cpf.Items[0].Type != ItemNullAddress || cpf.Items[1].Type != ItemUnconnectedData {
		t.Fatal("unexpected item type ordering")
	}
}
