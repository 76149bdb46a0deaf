package events

import (
	"errors"
	"fmt"

	"github.com/aurora-is-near/stream-events/borsh"
	"github.com/aurora-is-near/stream-events/types"
)

// FieldReader reads an event payload one field at a time in declared order.
// The first failure is kept and every later read becomes a no-op, so rules
// read all their fields and return Err() once.
type FieldReader struct {
	dec   *borsh.Decoder
	base  int
	index int
	err   *Error
}

// NewFieldReader reads payload, reporting offsets relative to the start of
// the whole message (base is the payload's offset in it).
func NewFieldReader(payload []byte, base int) *FieldReader {
	return &FieldReader{
		dec:  borsh.NewDecoder(payload),
		base: base,
	}
}

// Err returns the first failure as *Error, or nil.
func (r *FieldReader) Err() error {
	if r.err == nil {
		return nil
	}
	return r.err
}

// Index is the index of the next field to be read.
func (r *FieldReader) Index() int {
	return r.index
}

// Consumed is the number of payload bytes read so far.
func (r *FieldReader) Consumed() int {
	return r.dec.Position()
}

func (r *FieldReader) Remaining() int {
	return r.dec.Remaining()
}

// Field reads one field with a custom decode function.
func (r *FieldReader) Field(fn func(d *borsh.Decoder) error) {
	if r.err != nil {
		return
	}
	start := r.dec.Position()
	if err := fn(r.dec); err != nil {
		r.fail(start, err)
	}
	r.index++
}

// Invalid marks the previously read field as invalid, for checks that only
// the rule knows about (enum ranges, reserved values).
func (r *FieldReader) Invalid(reason string) {
	if r.err != nil {
		return
	}
	field := r.index - 1
	if field < 0 {
		field = 0
	}
	r.err = &Error{
		Kind:   KindInvalidFieldEncoding,
		Field:  field,
		Offset: r.base + r.dec.Position(),
		Reason: reason,
	}
}

func (r *FieldReader) fail(start int, err error) {
	kind := KindInvalidFieldEncoding
	// a length prefix running past the end means the payload was cut
	if errors.Is(err, borsh.ErrUnexpectedEOF) || errors.Is(err, borsh.ErrLengthOverflow) {
		kind = KindTruncatedField
	}
	r.err = &Error{
		Kind:   kind,
		Field:  r.index,
		Offset: r.base + start,
		Reason: err.Error(),
		Err:    err,
	}
}

func (r *FieldReader) Bool(v *bool) {
	r.Field(func(d *borsh.Decoder) (err error) {
		*v, err = d.DecodeBool()
		return
	})
}

func (r *FieldReader) U8(v *uint8) {
	r.Field(func(d *borsh.Decoder) (err error) {
		*v, err = d.DecodeU8()
		return
	})
}

func (r *FieldReader) U16(v *uint16) {
	r.Field(func(d *borsh.Decoder) (err error) {
		*v, err = d.DecodeU16()
		return
	})
}

func (r *FieldReader) U32(v *uint32) {
	r.Field(func(d *borsh.Decoder) (err error) {
		*v, err = d.DecodeU32()
		return
	})
}

func (r *FieldReader) U64(v *uint64) {
	r.Field(func(d *borsh.Decoder) (err error) {
		*v, err = d.DecodeU64()
		return
	})
}

func (r *FieldReader) U128(v *borsh.Uint128) {
	r.Field(func(d *borsh.Decoder) (err error) {
		*v, err = d.DecodeU128()
		return
	})
}

func (r *FieldReader) I8(v *int8) {
	r.Field(func(d *borsh.Decoder) (err error) {
		*v, err = d.DecodeI8()
		return
	})
}

func (r *FieldReader) I16(v *int16) {
	r.Field(func(d *borsh.Decoder) (err error) {
		*v, err = d.DecodeI16()
		return
	})
}

func (r *FieldReader) I32(v *int32) {
	r.Field(func(d *borsh.Decoder) (err error) {
		*v, err = d.DecodeI32()
		return
	})
}

func (r *FieldReader) I64(v *int64) {
	r.Field(func(d *borsh.Decoder) (err error) {
		*v, err = d.DecodeI64()
		return
	})
}

func (r *FieldReader) Pubkey(v *types.Pubkey) {
	r.Field(func(d *borsh.Decoder) error {
		return d.DecodeBytes(v[:])
	})
}

// Pubkeys reads a fixed-size array of len(v) keys as a single field.
func (r *FieldReader) Pubkeys(v []types.Pubkey) {
	ReadArray(r, v, DecodePubkey)
}

// Bytes reads a fixed-size byte array of len(v) bytes.
func (r *FieldReader) Bytes(v []byte) {
	r.Field(func(d *borsh.Decoder) error {
		return d.DecodeBytes(v)
	})
}

func (r *FieldReader) ByteVec(v *[]byte) {
	r.Field(func(d *borsh.Decoder) (err error) {
		*v, err = d.DecodeByteVec()
		return
	})
}

func (r *FieldReader) Str(v *string) {
	r.Field(func(d *borsh.Decoder) (err error) {
		*v, err = d.DecodeString()
		return
	})
}

func DecodePubkey(d *borsh.Decoder) (types.Pubkey, error) {
	var pk types.Pubkey
	err := d.DecodeBytes(pk[:])
	return pk, err
}

// ReadOption reads an Option<T>; *v is nil when absent.
func ReadOption[T any](r *FieldReader, v **T, read func(d *borsh.Decoder) (T, error)) {
	r.Field(func(d *borsh.Decoder) (err error) {
		*v, err = OptionOf(read)(d)
		return
	})
}

// ReadVec reads a u32-prefixed Vec<T>. minElemSize bounds the prefix against
// the remaining bytes; pass 0 when elements may be empty.
func ReadVec[T any](r *FieldReader, v *[]T, minElemSize int, read func(d *borsh.Decoder) (T, error)) {
	r.Field(func(d *borsh.Decoder) (err error) {
		*v, err = VecOf(minElemSize, read)(d)
		return
	})
}

// ReadArray fills the fixed-size array v as a single field.
func ReadArray[T any](r *FieldReader, v []T, read func(d *borsh.Decoder) (T, error)) {
	r.Field(func(d *borsh.Decoder) error {
		for i := range v {
			val, err := read(d)
			if err != nil {
				return err
			}
			v[i] = val
		}
		return nil
	})
}

// FieldWriter is the encoding counterpart of FieldReader.
type FieldWriter struct {
	enc *borsh.Encoder
}

func NewFieldWriter(buffer []byte) *FieldWriter {
	return &FieldWriter{enc: borsh.NewEncoder(buffer)}
}

func (w *FieldWriter) Bytes() []byte {
	return w.enc.Bytes()
}

func (w *FieldWriter) Encoder() *borsh.Encoder {
	return w.enc
}

func (w *FieldWriter) Bool(v bool) {
	w.enc.EncodeBool(v)
}

func (w *FieldWriter) U8(v uint8) {
	w.enc.EncodeU8(v)
}

func (w *FieldWriter) U16(v uint16) {
	w.enc.EncodeU16(v)
}

func (w *FieldWriter) U32(v uint32) {
	w.enc.EncodeU32(v)
}

func (w *FieldWriter) U64(v uint64) {
	w.enc.EncodeU64(v)
}

func (w *FieldWriter) U128(v borsh.Uint128) {
	w.enc.EncodeU128(v)
}

func (w *FieldWriter) I8(v int8) {
	w.enc.EncodeI8(v)
}

func (w *FieldWriter) I16(v int16) {
	w.enc.EncodeI16(v)
}

func (w *FieldWriter) I32(v int32) {
	w.enc.EncodeI32(v)
}

func (w *FieldWriter) I64(v int64) {
	w.enc.EncodeI64(v)
}

func (w *FieldWriter) Pubkey(v types.Pubkey) {
	w.enc.EncodeBytes(v[:])
}

func (w *FieldWriter) FixedBytes(v []byte) {
	w.enc.EncodeBytes(v)
}

func (w *FieldWriter) ByteVec(v []byte) {
	w.enc.EncodeByteVec(v)
}

func (w *FieldWriter) Str(v string) {
	w.enc.EncodeString(v)
}

func (w *FieldWriter) Pubkeys(v []types.Pubkey) {
	WriteArray(w, v, EncodePubkey)
}

func EncodePubkey(e *borsh.Encoder, v types.Pubkey) {
	e.EncodeBytes(v[:])
}

func WriteOption[T any](w *FieldWriter, v *T, write func(e *borsh.Encoder, v T)) {
	OptionEncoder(write)(w.enc, v)
}

func WriteVec[T any](w *FieldWriter, v []T, write func(e *borsh.Encoder, v T)) {
	VecEncoder(write)(w.enc, v)
}

func WriteArray[T any](w *FieldWriter, v []T, write func(e *borsh.Encoder, v T)) {
	for _, item := range v {
		write(w.enc, item)
	}
}

// OptionOf lifts read to an Option<T> reader, for options nested in
// vectors or other options.
func OptionOf[T any](read func(d *borsh.Decoder) (T, error)) func(d *borsh.Decoder) (*T, error) {
	return func(d *borsh.Decoder) (*T, error) {
		present, err := d.DecodeOptionTag()
		if err != nil || !present {
			return nil, err
		}
		val, err := read(d)
		if err != nil {
			return nil, err
		}
		return &val, nil
	}
}

// VecOf lifts read to a Vec<T> reader; see ReadVec for minElemSize.
// A minElemSize of 0 still caps the count at the remaining byte count, so
// a vector of zero-sized elements only decodes while empty (or no longer
// than the bytes that follow it). Borsh writers refuse such vectors too.
func VecOf[T any](minElemSize int, read func(d *borsh.Decoder) (T, error)) func(d *borsh.Decoder) ([]T, error) {
	return func(d *borsh.Decoder) ([]T, error) {
		n, err := d.DecodeLength(minElemSize)
		if err != nil {
			return nil, err
		}
		if minElemSize == 0 && n > d.Remaining() {
			return nil, fmt.Errorf("%w: %d elements", borsh.ErrLengthOverflow, n)
		}
		out := make([]T, 0, n)
		for i := 0; i < n; i++ {
			val, err := read(d)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	}
}

func OptionEncoder[T any](write func(e *borsh.Encoder, v T)) func(e *borsh.Encoder, v *T) {
	return func(e *borsh.Encoder, v *T) {
		e.EncodeOptionTag(v != nil)
		if v != nil {
			write(e, *v)
		}
	}
}

func VecEncoder[T any](write func(e *borsh.Encoder, v T)) func(e *borsh.Encoder, v []T) {
	return func(e *borsh.Encoder, v []T) {
		e.EncodeLength(len(v))
		for _, item := range v {
			write(e, item)
		}
	}
}
