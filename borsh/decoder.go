package borsh

import (
	"encoding/binary"
	"unicode/utf8"
)

// Decoder reads little-endian borsh primitives from a byte slice.
// A failed read leaves the position unchanged.
type Decoder struct {
	buffer   []byte
	position int
}

func NewDecoder(buffer []byte) *Decoder {
	return &Decoder{buffer: buffer}
}

func (d *Decoder) Position() int {
	return d.position
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buffer) - d.position
}

func (d *Decoder) take(n int) ([]byte, error) {
	if n < 0 || d.Remaining() < n {
		return nil, ErrUnexpectedEOF
	}
	b := d.buffer[d.position : d.position+n]
	d.position += n
	return b, nil
}

func (d *Decoder) DecodeBool() (bool, error) {
	if d.Remaining() < 1 {
		return false, ErrUnexpectedEOF
	}
	val := d.buffer[d.position]
	if val > 1 {
		return false, ErrInvalidBool
	}
	d.position++
	return val == 1, nil
}

func (d *Decoder) DecodeU8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) DecodeU16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (d *Decoder) DecodeU32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *Decoder) DecodeU64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (d *Decoder) DecodeU128() (Uint128, error) {
	b, err := d.take(16)
	if err != nil {
		return Uint128{}, err
	}
	return Uint128{
		Lo: binary.LittleEndian.Uint64(b[:8]),
		Hi: binary.LittleEndian.Uint64(b[8:]),
	}, nil
}

func (d *Decoder) DecodeI8() (int8, error) {
	v, err := d.DecodeU8()
	return int8(v), err
}

func (d *Decoder) DecodeI16() (int16, error) {
	v, err := d.DecodeU16()
	return int16(v), err
}

func (d *Decoder) DecodeI32() (int32, error) {
	v, err := d.DecodeU32()
	return int32(v), err
}

func (d *Decoder) DecodeI64() (int64, error) {
	v, err := d.DecodeU64()
	return int64(v), err
}

// DecodeBytes copies the next len(buf) bytes into buf.
func (d *Decoder) DecodeBytes(buf []byte) error {
	b, err := d.take(len(buf))
	if err != nil {
		return err
	}
	copy(buf, b)
	return nil
}

// DecodeLength reads a u32 length prefix for elements of elemSize bytes
// each. The prefix is rejected when the elements cannot fit in what is left.
func (d *Decoder) DecodeLength(elemSize int) (int, error) {
	if d.Remaining() < 4 {
		return 0, ErrUnexpectedEOF
	}
	n := binary.LittleEndian.Uint32(d.buffer[d.position:])
	if elemSize > 0 && uint64(n)*uint64(elemSize) > uint64(d.Remaining()-4) {
		return 0, ErrLengthOverflow
	}
	d.position += 4
	return int(n), nil
}

func (d *Decoder) DecodeByteVec() ([]byte, error) {
	start := d.position
	n, err := d.DecodeLength(1)
	if err != nil {
		return nil, err
	}
	b, err := d.take(n)
	if err != nil {
		d.position = start
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

func (d *Decoder) DecodeString() (string, error) {
	start := d.position
	b, err := d.DecodeByteVec()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		d.position = start
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}

// DecodeOptionTag reads the presence byte of an Option<T>.
func (d *Decoder) DecodeOptionTag() (bool, error) {
	if d.Remaining() < 1 {
		return false, ErrUnexpectedEOF
	}
	switch d.buffer[d.position] {
	case 0:
		d.position++
		return false, nil
	case 1:
		d.position++
		return true, nil
	default:
		return false, ErrInvalidOption
	}
}

func (d *Decoder) SkipBytes(n int) error {
	_, err := d.take(n)
	return err
}
