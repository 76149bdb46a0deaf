// Package record frames stored stream messages with the protobuf wire format.
//
//	1: sequence  (varint)
//	2: header    (bytes, repeated) -> 1: key (bytes), 2: value (bytes, repeated)
//	3: data      (bytes)
//	4: timestamp (varint, unix nanoseconds)
package record

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nats-io/nats.go"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldSequence  protowire.Number = 1
	fieldHeader    protowire.Number = 2
	fieldData      protowire.Number = 3
	fieldTimestamp protowire.Number = 4

	fieldHeaderKey   protowire.Number = 1
	fieldHeaderValue protowire.Number = 2
)

var ErrMalformed = errors.New("malformed record")

type Record struct {
	Sequence  uint64
	Header    nats.Header
	Data      []byte
	Timestamp time.Time
}

// Marshal encodes the record. Header keys are written in sorted order so
// equal records encode to equal bytes.
func (r *Record) Marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldSequence, protowire.VarintType)
	b = protowire.AppendVarint(b, r.Sequence)

	keys := make([]string, 0, len(r.Header))
	for k := range r.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var h []byte
		h = protowire.AppendTag(h, fieldHeaderKey, protowire.BytesType)
		h = protowire.AppendString(h, k)
		for _, v := range r.Header[k] {
			h = protowire.AppendTag(h, fieldHeaderValue, protowire.BytesType)
			h = protowire.AppendString(h, v)
		}
		b = protowire.AppendTag(b, fieldHeader, protowire.BytesType)
		b = protowire.AppendBytes(b, h)
	}

	b = protowire.AppendTag(b, fieldData, protowire.BytesType)
	b = protowire.AppendBytes(b, r.Data)

	if !r.Timestamp.IsZero() {
		b = protowire.AppendTag(b, fieldTimestamp, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.Timestamp.UnixNano()))
	}
	return b
}

// Unmarshal decodes a record. Unknown fields are skipped.
func Unmarshal(b []byte) (*Record, error) {
	r := &Record{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldSequence && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: sequence: %v", ErrMalformed, protowire.ParseError(n))
			}
			r.Sequence = v
			b = b[n:]
		case num == fieldHeader && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: header: %v", ErrMalformed, protowire.ParseError(n))
			}
			if r.Header == nil {
				r.Header = nats.Header{}
			}
			if err := unmarshalHeader(v, r.Header); err != nil {
				return nil, err
			}
			b = b[n:]
		case num == fieldData && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: data: %v", ErrMalformed, protowire.ParseError(n))
			}
			r.Data = append([]byte{}, v...)
			b = b[n:]
		case num == fieldTimestamp && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: timestamp: %v", ErrMalformed, protowire.ParseError(n))
			}
			r.Timestamp = time.Unix(0, int64(v)).UTC()
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return r, nil
}

func unmarshalHeader(b []byte, header nats.Header) error {
	var key string
	var values []string
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: header: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		if typ != protowire.BytesType || (num != fieldHeaderKey && num != fieldHeaderValue) {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("%w: header: %v", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeString(b)
		if n < 0 {
			return fmt.Errorf("%w: header: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		if num == fieldHeaderKey {
			key = v
		} else {
			values = append(values, v)
		}
	}
	if len(key) == 0 {
		return fmt.Errorf("%w: header without key", ErrMalformed)
	}
	// keys are stored as received, bypassing canonicalization
	header[key] = append(header[key], values...)
	return nil
}
