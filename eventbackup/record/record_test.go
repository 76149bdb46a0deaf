package record

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestRecord(t *testing.T) {
	r := &Record{
		Sequence: 42,
		Header: nats.Header{
			"Program-Id": {"6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"},
			"Slot":       {"1000"},
			"Multi":      {"a", "b"},
		},
		Data:      []byte{1, 2, 3},
		Timestamp: time.Unix(1700000000, 123).UTC(),
	}
	b := r.Marshal()
	assert.Equal(t, b, r.Marshal())

	decoded, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, r, decoded)
}

func TestRecordWithoutOptionalFields(t *testing.T) {
	decoded, err := Unmarshal((&Record{Sequence: 1}).Marshal())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), decoded.Sequence)
	assert.Nil(t, decoded.Header)
	assert.Empty(t, decoded.Data)
	assert.True(t, decoded.Timestamp.IsZero())
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	b := (&Record{Sequence: 7, Data: []byte{9}}).Marshal()
	b = protowire.AppendTag(b, 15, protowire.BytesType)
	b = protowire.AppendString(b, "future")
	b = protowire.AppendTag(b, 16, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, 1)

	decoded, err := Unmarshal(b)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), decoded.Sequence)
	assert.Equal(t, []byte{9}, decoded.Data)
}

func TestUnmarshalMalformed(t *testing.T) {
	b := (&Record{Sequence: 7, Data: []byte{1, 2, 3, 4}}).Marshal()
	for cut := 1; cut < len(b); cut++ {
		_, err := Unmarshal(b[:cut])
		if err != nil {
			assert.ErrorIs(t, err, ErrMalformed, "cut=%d", cut)
		}
	}
	_, err := Unmarshal(b[:len(b)-1])
	assert.ErrorIs(t, err, ErrMalformed)

	var header []byte
	header = protowire.AppendTag(header, fieldHeaderValue, protowire.BytesType)
	header = protowire.AppendString(header, "orphan")
	var rec []byte
	rec = protowire.AppendTag(rec, fieldHeader, protowire.BytesType)
	rec = protowire.AppendBytes(rec, header)
	_, err = Unmarshal(rec)
	assert.ErrorIs(t, err, ErrMalformed)
}
