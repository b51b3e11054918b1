// Package epath decodes and builds CIP EPATH segments: logical
// (class/instance/attribute/member/connection-point) segments and ANSI
// extended symbolic segments (spec §4.5).
package epath

import "encoding/binary"

// LogicalType identifies which logical segment was parsed.
type LogicalType int

const (
	LogicalClass LogicalType = iota
	LogicalInstance
	LogicalMember
	LogicalConnectionPoint
	LogicalAttribute
)

// logical segment encoding: top 3 bits == 0x20, bits 4-2 = type, bit 0 = size.
const (
	logicalMask    = 0xE0
	logicalTag     = 0x20
	logicalTypeBit = 0x1C // bits 4-2
	logicalSizeBit = 0x01
)

const symbolicTag = 0x91

// Segment is one decoded path segment: either logical (Type set, IsSymbolic
// false) or symbolic (Name set, IsSymbolic true).
type Segment struct {
	IsSymbolic bool
	Type       LogicalType
	Value      uint16
	Name       string
}

// Path is an ordered list of decoded segments plus convenience
// extractions (spec §4.5 "Convenience extractions").
type Path struct {
	Segments []Segment
}

// ClassID returns the value of the first Class logical segment, if any.
func (p Path) ClassID() (uint16, bool) {
	return p.firstLogical(LogicalClass)
}

// InstanceID returns the value of the first Instance logical segment, if any.
func (p Path) InstanceID() (uint16, bool) {
	return p.firstLogical(LogicalInstance)
}

// AttributeID returns the value of the first Attribute logical segment, if any.
func (p Path) AttributeID() (uint16, bool) {
	return p.firstLogical(LogicalAttribute)
}

// TagName returns the name of the first symbolic segment, if any.
func (p Path) TagName() (string, bool) {
	for _, seg := range p.Segments {
		if seg.IsSymbolic {
			return seg.Name, true
		}
	}
	return "", false
}

func (p Path) firstLogical(t LogicalType) (uint16, bool) {
	for _, seg := range p.Segments {
		if !seg.IsSymbolic && seg.Type == t {
			return seg.Value, true
		}
	}
	return 0, false
}

// Parse decodes a raw EPATH byte sequence (spec §4.5). Unrecognized
// leading bytes are skipped one at a time for best-effort resync; a
// segment truncated mid-way silently ends parsing rather than erroring.
func Parse(data []byte) Path {
	var path Path
	offset := 0
	for offset < len(data) {
		b := data[offset]

		if b&logicalMask == logicalTag {
			typ := LogicalType((b & logicalTypeBit) >> 2)
			if b&logicalSizeBit == 0 {
				if offset+2 > len(data) {
					break
				}
				path.Segments = append(path.Segments, Segment{Type: typ, Value: uint16(data[offset+1])})
				offset += 2
				continue
			}
			if offset+4 > len(data) {
				break
			}
			value := binary.LittleEndian.Uint16(data[offset+2 : offset+4])
			path.Segments = append(path.Segments, Segment{Type: typ, Value: value})
			offset += 4
			continue
		}

		if b == symbolicTag {
			if offset+2 > len(data) {
				break
			}
			n := int(data[offset+1])
			if offset+2+n > len(data) {
				break
			}
			name := string(data[offset+2 : offset+2+n])
			path.Segments = append(path.Segments, Segment{IsSymbolic: true, Name: name})
			offset += 2 + n
			if n%2 != 0 {
				offset++
			}
			continue
		}

		offset++
	}
	return path
}

// BuildLogical encodes a class/instance/attribute logical path, using
// 8-bit segments for values up to 255 and 16-bit segments above that. A
// zero attribute is omitted from the path.
func BuildLogical(class, instance, attribute uint16) []byte {
	var out []byte
	out = appendLogical(out, LogicalClass, class)
	out = appendLogical(out, LogicalInstance, instance)
	if attribute != 0 {
		out = appendLogical(out, LogicalAttribute, attribute)
	}
	return out
}

func appendLogical(dst []byte, typ LogicalType, value uint16) []byte {
	typeBits := byte(typ) << 2
	if value <= 0xFF {
		dst = append(dst, logicalTag|typeBits, byte(value))
		return dst
	}
	dst = append(dst, logicalTag|typeBits|logicalSizeBit, 0x00)
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, value)
	return append(dst, buf...)
}

// BuildSymbolic encodes a single ANSI extended symbolic segment for name.
func BuildSymbolic(name string) []byte {
	if name == "" {
		return nil
	}
	out := []byte{symbolicTag, byte(len(name))}
	out = append(out, []byte(name)...)
	if len(name)%2 != 0 {
		out = append(out, 0x00)
	}
	return out
}
