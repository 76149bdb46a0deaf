package events_test

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurora-is-near/stream-events/borsh"
	"github.com/aurora-is-near/stream-events/discriminator"
	"github.com/aurora-is-near/stream-events/events"
	"github.com/aurora-is-near/stream-events/types"
)

func listingPayload(name []byte, optionTag []byte, active byte) []byte {
	var seller types.Pubkey
	seller[0] = 0xab
	e := borsh.NewEncoder(nil)
	e.EncodeBytes(seller[:])
	e.EncodeU64(1000)
	e.EncodeByteVec(name)
	e.EncodeBytes(optionTag)
	e.EncodeLength(2)
	e.EncodeU16(7)
	e.EncodeU16(9)
	e.EncodeU8(active)
	return e.Bytes()
}

func requireKind(t *testing.T, err error, kind events.ErrorKind) *events.Error {
	t.Helper()
	require.Error(t, err)
	var e *events.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, kind, e.Kind, "unexpected error: %v", err)
	return e
}

func TestDecodeTransfer(t *testing.T) {
	reg := testRegistry()

	ev, err := events.Decode(concat(transferTag, []byte{0x2a, 0, 0, 0, 0, 0, 0, 0}), reg)
	require.NoError(t, err)
	assert.Equal(t, &Transfer{Amount: 42}, ev)

	_, err = events.Decode(concat(transferTag, []byte{0x2a, 0, 0}), reg)
	e := requireKind(t, err, events.KindTruncatedField)
	assert.Equal(t, 0, e.Field)
	assert.Equal(t, 8, e.Offset)
	assert.Equal(t, "Transfer", e.Name)
	assert.ErrorIs(t, err, events.ErrTruncatedField)
	assert.ErrorIs(t, err, borsh.ErrUnexpectedEOF)

	unknownTag := bytes.Repeat([]byte{0x99}, 8)
	ev, err = events.Decode(concat(unknownTag, []byte{0xff}), reg)
	require.NoError(t, err)
	assert.Equal(t, &events.Unknown{Discriminator: unknownTag, Payload: []byte{0xff}}, ev)
}

func TestDecodeTruncatedDiscriminator(t *testing.T) {
	reg := testRegistry()
	for n := 0; n < discriminator.DefaultWidth; n++ {
		_, err := events.Decode(transferTag[:n], reg)
		e := requireKind(t, err, events.KindTruncatedDiscriminator)
		assert.Equal(t, n, e.Offset)
		assert.ErrorIs(t, err, events.ErrTruncatedDiscriminator)
	}
}

func TestDecodeUnknownEmptyPayload(t *testing.T) {
	reg := testRegistry()
	tag := []byte{9, 9, 9, 9, 9, 9, 9, 9}
	ev, err := events.Decode(tag, reg)
	require.NoError(t, err)
	unknown, ok := ev.(*events.Unknown)
	require.True(t, ok)
	assert.Equal(t, discriminator.Discriminator(tag), unknown.Discriminator)
	assert.Empty(t, unknown.Payload)
	assert.Equal(t, events.UnknownEventName, ev.EventName())
}

func TestDecodeUnknownDoesNotAlias(t *testing.T) {
	reg := testRegistry()
	buf := []byte{9, 9, 9, 9, 9, 9, 9, 9, 1, 2, 3}
	ev, err := events.Decode(buf, reg)
	require.NoError(t, err)
	buf[0], buf[8] = 0, 0
	unknown := ev.(*events.Unknown)
	assert.Equal(t, byte(9), unknown.Discriminator[0])
	assert.Equal(t, []byte{1, 2, 3}, unknown.Payload)
}

func TestDecodeListing(t *testing.T) {
	reg := testRegistry()
	payload := listingPayload([]byte("sword"), []byte{1, 0x10, 0, 0, 0, 0, 0, 0, 0}, 1)

	ev, err := events.Decode(concat(listingTag, payload), reg)
	require.NoError(t, err)
	listing, ok := ev.(*Listing)
	require.True(t, ok)
	assert.Equal(t, byte(0xab), listing.Seller[0])
	assert.Equal(t, uint64(1000), listing.Price)
	assert.Equal(t, "sword", listing.Name)
	require.NotNil(t, listing.Expiry)
	assert.Equal(t, int64(16), *listing.Expiry)
	assert.Equal(t, []uint16{7, 9}, listing.Tags)
	assert.True(t, listing.Active)

	ev, err = events.Decode(concat(listingTag, listingPayload([]byte("x"), []byte{0}, 0)), reg)
	require.NoError(t, err)
	assert.Nil(t, ev.(*Listing).Expiry)
}

func TestDecodeInvalidFieldEncoding(t *testing.T) {
	reg := testRegistry()

	_, err := events.Decode(concat(listingTag, listingPayload([]byte{0xff, 0xfe}, []byte{0}, 0)), reg)
	e := requireKind(t, err, events.KindInvalidFieldEncoding)
	assert.Equal(t, 2, e.Field)
	assert.Equal(t, 8+32+8, e.Offset)
	assert.ErrorIs(t, err, borsh.ErrInvalidUTF8)

	_, err = events.Decode(concat(listingTag, listingPayload([]byte("x"), []byte{5}, 0)), reg)
	e = requireKind(t, err, events.KindInvalidFieldEncoding)
	assert.Equal(t, 3, e.Field)
	assert.ErrorIs(t, err, borsh.ErrInvalidOption)

	_, err = events.Decode(concat(listingTag, listingPayload([]byte("x"), []byte{0}, 2)), reg)
	e = requireKind(t, err, events.KindInvalidFieldEncoding)
	assert.Equal(t, 5, e.Field)
	assert.ErrorIs(t, err, borsh.ErrInvalidBool)
	assert.Contains(t, err.Error(), "field=5")
}

func TestDecodeTruncatedLaterField(t *testing.T) {
	reg := testRegistry()
	full := listingPayload([]byte("sword"), []byte{0}, 1)

	// cut inside the tags vector
	_, err := events.Decode(concat(listingTag, full[:len(full)-3]), reg)
	e := requireKind(t, err, events.KindTruncatedField)
	assert.Equal(t, 4, e.Field)

	// cut right before the bool
	_, err = events.Decode(concat(listingTag, full[:len(full)-1]), reg)
	e = requireKind(t, err, events.KindTruncatedField)
	assert.Equal(t, 5, e.Field)
	assert.Equal(t, 8+len(full)-1, e.Offset)
}

func TestDecodeRuleError(t *testing.T) {
	reg := testRegistry()

	ev, err := events.Decode(concat(tierTag, []byte{2}), reg)
	require.NoError(t, err)
	assert.Equal(t, &Tier{Level: 2}, ev)

	_, err = events.Decode(concat(tierTag, []byte{7}), reg)
	e := requireKind(t, err, events.KindInvalidFieldEncoding)
	assert.Equal(t, 0, e.Field)
	assert.Equal(t, "Tier", e.Name)
	assert.ErrorIs(t, err, errTooHigh)
}

func TestDecodeTrailingBytes(t *testing.T) {
	reg := testRegistry()
	buf := concat(transferTag, le64(42), []byte{1, 2, 3})

	ev, err := events.Decode(buf, reg)
	require.NoError(t, err)
	assert.Equal(t, &Transfer{Amount: 42}, ev)

	strict := events.Decoder{Registry: reg, RejectTrailing: true}
	_, err = strict.Decode(buf)
	e := requireKind(t, err, events.KindTrailingBytes)
	assert.Equal(t, 16, e.Offset)

	ev, err = strict.Decode(concat(transferTag, le64(42)))
	require.NoError(t, err)
	assert.Equal(t, &Transfer{Amount: 42}, ev)
}

func TestDecodeIdempotent(t *testing.T) {
	reg := testRegistry()
	buf := concat(listingTag, listingPayload([]byte("sword"), []byte{0}, 1))
	a, errA := events.Decode(buf, reg)
	b, errB := events.Decode(buf, reg)
	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, a, b)
}

func TestDecodeConcurrent(t *testing.T) {
	reg := testRegistry()
	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ev, err := events.Decode(concat(transferTag, le64(uint64(i))), reg)
			if err != nil {
				errs <- err
				return
			}
			if ev.(*Transfer).Amount != uint64(i) {
				errs <- assert.AnError
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestEncode(t *testing.T) {
	reg := testRegistry()

	out, err := events.Encode(reg, &Transfer{Amount: 42})
	require.NoError(t, err)
	assert.Equal(t, concat(transferTag, le64(42)), out)

	expiry := int64(-5)
	listing := &Listing{Price: 1, Name: "bow", Expiry: &expiry, Tags: []uint16{1}, Active: true}
	out, err = events.Encode(reg, listing)
	require.NoError(t, err)
	back, err := events.Decode(out, reg)
	require.NoError(t, err)
	assert.Equal(t, listing, back)

	unknown := &events.Unknown{Discriminator: bytes.Repeat([]byte{7}, 8), Payload: []byte{1}}
	out, err = events.Encode(reg, unknown)
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 7, 7, 7, 7, 7, 7, 7, 1}, out)

	_, err = events.Encode(reg, &events.Unknown{Discriminator: []byte{7}})
	requireKind(t, err, events.KindDiscriminatorWidth)

	_, err = events.Encode(reg, &Tier{Level: 1})
	requireKind(t, err, events.KindNoEncoder)

	_, err = events.Encode(reg, unregistered{})
	requireKind(t, err, events.KindUnknownEvent)
}

type unregistered struct{}

func (unregistered) EventName() string { return "Nope" }

func TestVecOfZeroSizedElements(t *testing.T) {
	unit := func(*borsh.Decoder) (struct{}, error) { return struct{}{}, nil }
	read := events.VecOf(0, unit)

	e := borsh.NewEncoder(nil)
	e.EncodeU32(0)
	vals, err := read(borsh.NewDecoder(e.Bytes()))
	require.NoError(t, err)
	assert.Empty(t, vals)

	e = borsh.NewEncoder(nil)
	e.EncodeU32(3)
	_, err = read(borsh.NewDecoder(e.Bytes()))
	assert.ErrorIs(t, err, borsh.ErrLengthOverflow)
}
