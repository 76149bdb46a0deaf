package borsh

import (
	"encoding/binary"
)

// Encoder appends borsh primitives to a growing buffer.
type Encoder struct {
	buffer []byte
}

func NewEncoder(buffer []byte) *Encoder {
	return &Encoder{buffer: buffer}
}

func (e *Encoder) Bytes() []byte {
	return e.buffer
}

func (e *Encoder) Len() int {
	return len(e.buffer)
}

func (e *Encoder) EncodeBool(v bool) {
	if v {
		e.buffer = append(e.buffer, 0x01)
	} else {
		e.buffer = append(e.buffer, 0x00)
	}
}

func (e *Encoder) EncodeU8(v uint8) {
	e.buffer = append(e.buffer, v)
}

func (e *Encoder) EncodeU16(v uint16) {
	e.buffer = binary.LittleEndian.AppendUint16(e.buffer, v)
}

func (e *Encoder) EncodeU32(v uint32) {
	e.buffer = binary.LittleEndian.AppendUint32(e.buffer, v)
}

func (e *Encoder) EncodeU64(v uint64) {
	e.buffer = binary.LittleEndian.AppendUint64(e.buffer, v)
}

func (e *Encoder) EncodeU128(v Uint128) {
	e.EncodeU64(v.Lo)
	e.EncodeU64(v.Hi)
}

func (e *Encoder) EncodeI8(v int8) {
	e.EncodeU8(uint8(v))
}

func (e *Encoder) EncodeI16(v int16) {
	e.EncodeU16(uint16(v))
}

func (e *Encoder) EncodeI32(v int32) {
	e.EncodeU32(uint32(v))
}

func (e *Encoder) EncodeI64(v int64) {
	e.EncodeU64(uint64(v))
}

func (e *Encoder) EncodeBytes(v []byte) {
	e.buffer = append(e.buffer, v...)
}

func (e *Encoder) EncodeLength(n int) {
	e.EncodeU32(uint32(n))
}

func (e *Encoder) EncodeByteVec(v []byte) {
	e.EncodeLength(len(v))
	e.EncodeBytes(v)
}

func (e *Encoder) EncodeString(v string) {
	e.EncodeLength(len(v))
	e.buffer = append(e.buffer, v...)
}

func (e *Encoder) EncodeOptionTag(present bool) {
	e.EncodeBool(present)
}
