package enip

import "encoding/binary"

// DetectByteOrder implements the Endianness Probe (spec §4.1 step 3): it
// inspects the first four header bytes and decides whether this frame is
// big- or little-endian encapsulation. It flips to little-endian only when
// that is the unique interpretation that resolves to a well-known command,
// per the conservative rule in spec §9 "Endianness as a per-connection
// fact".
func DetectByteOrder(first4 []byte) binary.ByteOrder {
	cmdBE := binary.BigEndian.Uint16(first4[0:2])
	cmdLE := binary.LittleEndian.Uint16(first4[0:2])

	if wellKnownCommands[cmdLE] && !wellKnownCommands[cmdBE] {
		return binary.LittleEndian
	}
	return binary.BigEndian
}
