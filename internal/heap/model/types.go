package model

import (
	"encoding/binary"
	"fmt"
)

type ID uint64           // Represents an object address, 4 or 8 bytes depending on platform
type MemberOffset uint32 // Byte offset of a field/slot from an object's base address

// NullRef is the null reference. Address 0 is never allocated.
const NullRef ID = 0

type FieldType byte

const (
	TypeObject FieldType = iota
	TypeBoolean
	TypeChar
	TypeFloat
	TypeDouble
	TypeByte
	TypeShort
	TypeInt
	TypeLong
)

func (ft FieldType) String() string {
	switch ft {
	case TypeObject:
		return "object"
	case TypeBoolean:
		return "boolean"
	case TypeChar:
		return "char"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeByte:
		return "byte"
	case TypeShort:
		return "short"
	case TypeInt:
		return "int"
	case TypeLong:
		return "long"
	default:
		return fmt.Sprintf("FieldType(0x%02X)", byte(ft))
	}
}

// IsReference reports whether a field of this type holds an object reference.
func (ft FieldType) IsReference() bool {
	return ft == TypeObject
}

func (ft FieldType) Size(pointerSize uint32) uint32 {
	switch ft {
	case TypeBoolean, TypeByte:
		return 1
	case TypeChar, TypeShort:
		return 2
	case TypeInt, TypeFloat:
		return 4
	case TypeLong, TypeDouble:
		return 8
	case TypeObject:
		return pointerSize
	default:
		return 0
	}
}

// Layout fixes where the runtime places the object header, instance fields
// and array regions for a given pointer width.
//
// Every object starts with a class word at offset 0 and a mark/monitor word;
// instance fields follow the header. Arrays store their length right after
// the header and their element slots after that.
type Layout struct {
	PointerSize uint32 // 4 or 8
}

func (l Layout) ClassOffset() MemberOffset {
	return 0
}

func (l Layout) MonitorOffset() MemberOffset {
	return MemberOffset(l.PointerSize)
}

// FieldsOffset is the base offset of instance fields, directly after the
// two-word object header.
func (l Layout) FieldsOffset() MemberOffset {
	return MemberOffset(2 * l.PointerSize)
}

func (l Layout) ArrayLengthOffset() MemberOffset {
	return l.FieldsOffset()
}

// ArrayDataOffset is the base offset of array element slots. The length word
// is padded to a full pointer width.
func (l Layout) ArrayDataOffset() MemberOffset {
	return MemberOffset(3 * l.PointerSize)
}

// InstanceFieldOffset maps a reference-offset bitmap slot to its byte offset.
func (l Layout) InstanceFieldOffset(slot int) MemberOffset {
	return l.FieldsOffset() + MemberOffset(uint32(slot)*l.PointerSize)
}

// ReadWord reads a pointer-width big-endian word at off.
func ReadWord(data []byte, off MemberOffset, pointerSize uint32) ID {
	if pointerSize == 4 {
		return ID(binary.BigEndian.Uint32(data[off:]))
	}
	return ID(binary.BigEndian.Uint64(data[off:]))
}

// WriteWord writes a pointer-width big-endian word at off.
func WriteWord(data []byte, off MemberOffset, pointerSize uint32, v ID) {
	if pointerSize == 4 {
		binary.BigEndian.PutUint32(data[off:], uint32(v))
		return
	}
	binary.BigEndian.PutUint64(data[off:], uint64(v))
}
