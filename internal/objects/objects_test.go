package objects

import (
	"encoding/binary"
	"testing"

	"github.com/BurakDalkiran34/simulator-ethernetip-server/internal/cip/message"
)

func testIdentity() Identity {
	return Identity{
		VendorID:    1,
		DeviceType:  0x000C,
		ProductCode: 0x00000001,
		RevMajor:    1,
		RevMinor:    0,
		Status:      0x0001,
		Serial:      0x12345678,
		ProductName: "Sim",
	}
}

func TestIdentityAttributesLittleEndian(t *testing.T) {
	id := testIdentity()
	payload, status := id.GetAttributeSingle(1, 1)
	if status != message.StatusSuccess {
		t.Fatalf("expected success, got %x", status)
	}
	if binary.LittleEndian.Uint16(payload) != id.VendorID {
		t.Fatalf("vendor id mismatch")
	}
}

func TestIdentityUnknownInstance(t *testing.T) {
	id := testIdentity()
	_, status := id.GetAttributeSingle(2, 1)
	if status != message.StatusObjectDoesNotExist {
		t.Fatalf("expected OBJECT_DOES_NOT_EXIST, got %x", status)
	}
}

func TestIdentityUnknownAttribute(t *testing.T) {
	id := testIdentity()
	_, status := id.GetAttributeSingle(1, 99)
	if status != message.StatusAttributeNotSupported {
		t.Fatalf("expected ATTRIBUTE_NOT_SUPPORTED, got %x", status)
	}
}

func TestIdentityGetAttributeAllShape(t *testing.T) {
	id := testIdentity()
	payload, status := id.GetAttributeAll(1)
	if status != message.StatusSuccess {
		t.Fatalf("expected success")
	}
	if binary.LittleEndian.Uint16(payload[0:2]) != id.VendorID {
		t.Fatalf("vendor_id should be first field")
	}
	if binary.LittleEndian.Uint16(payload[2:4]) != id.DeviceType {
		t.Fatalf("device_type should be second field")
	}
	if payload[6] != 1 || payload[7] != 0 {
		t.Fatalf("revision bytes should be major=1 minor=0, got %v", payload[6:8])
	}
}

func TestMessageRouterAttributes(t *testing.T) {
	mr := MessageRouter{}
	payload, status := mr.GetAttributeSingle(1, 1)
	if status != message.StatusSuccess || binary.LittleEndian.Uint16(payload) != 3 {
		t.Fatalf("expected attr 1 == 3")
	}
}

func TestConnectionManagerSessionCount(t *testing.T) {
	cm := ConnectionManager{SessionCount: func() int { return 5 }}
	payload, status := cm.GetAttributeSingle(1, 2)
	if status != message.StatusSuccess {
		t.Fatalf("expected success")
	}
	if binary.LittleEndian.Uint16(payload) != 5 {
		t.Fatalf("expected session count 5, got %d", binary.LittleEndian.Uint16(payload))
	}
}
