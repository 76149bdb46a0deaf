package catalog

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurora-is-near/stream-events/events"
	"github.com/aurora-is-near/stream-events/programs/meteoradlmm"
	"github.com/aurora-is-near/stream-events/programs/pumpfun"
	"github.com/aurora-is-near/stream-events/types"
)

func tradeData(t *testing.T) []byte {
	buf, err := events.Encode(pumpfun.Registry(), &pumpfun.TradeEvent{SolAmount: 10, TokenAmount: 20, IsBuy: true})
	require.NoError(t, err)
	return buf
}

func TestDefault(t *testing.T) {
	c := Default()
	programs := c.Programs()
	require.Len(t, programs, 3)
	assert.Equal(t, meteoradlmm.Name, programs[0].Name)

	p, ok := c.Lookup(pumpfun.ProgramID)
	require.True(t, ok)
	assert.Same(t, pumpfun.Registry(), p.Registry)
}

func TestNewRejectsDuplicates(t *testing.T) {
	p := Program{ID: pumpfun.ProgramID, Name: "a", Registry: pumpfun.Registry()}
	_, err := New(p, p)
	assert.Error(t, err)

	_, err = New(Program{ID: pumpfun.ProgramID, Name: "a"})
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	c := Default()

	p, err := c.Resolve(pumpfun.Name)
	require.NoError(t, err)
	assert.Equal(t, pumpfun.ProgramID, p.ID)

	p, err = c.Resolve(meteoradlmm.ProgramID.String())
	require.NoError(t, err)
	assert.Equal(t, meteoradlmm.Name, p.Name)

	_, err = c.Resolve("nope")
	assert.ErrorIs(t, err, ErrUnknownProgram)
	_, err = c.Resolve(types.Pubkey{7}.String())
	assert.ErrorIs(t, err, ErrUnknownProgram)
}

func TestDecode(t *testing.T) {
	c := Default()

	ev, err := c.Decode(pumpfun.ProgramID, tradeData(t))
	require.NoError(t, err)
	assert.Equal(t, uint64(10), ev.(*pumpfun.TradeEvent).SolAmount)

	_, err = c.Decode(types.Pubkey{1}, tradeData(t))
	assert.ErrorIs(t, err, ErrUnknownProgram)

	// same bytes under a 16-byte registry are just an unknown tag
	ev, err = c.Decode(meteoradlmm.ProgramID, tradeData(t))
	require.NoError(t, err)
	assert.IsType(t, &events.Unknown{}, ev)
}

func TestDecodeMessage(t *testing.T) {
	c := Default()
	msg := &types.EventMessage{
		Sequence:  5,
		ProgramID: pumpfun.ProgramID,
		Slot:      300,
		Signature: "sig",
		Data:      tradeData(t),
	}

	doc, err := c.DecodeMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), doc.Sequence)
	assert.Equal(t, uint64(300), doc.Slot)
	assert.Equal(t, pumpfun.Name, doc.ProgramName)
	assert.Equal(t, "TradeEvent", doc.Event)
	assert.Equal(t, pumpfun.TradeEventDiscriminator.String(), doc.Discriminator)
	assert.False(t, doc.Unknown)

	var fields map[string]interface{}
	require.NoError(t, cbor.Unmarshal(doc.Fields, &fields))
	assert.EqualValues(t, 10, fields["sol_amount"])
	assert.Equal(t, true, fields["is_buy"])
	assert.Equal(t, types.Pubkey{}.String(), fields["mint"])

	msg.Data = []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}
	doc, err = c.DecodeMessage(msg)
	require.NoError(t, err)
	assert.True(t, doc.Unknown)
	assert.Equal(t, "0x0102030405060708", doc.Discriminator)
	assert.Equal(t, []byte{9}, doc.Payload)
	assert.Empty(t, doc.Fields)

	msg.Data = msg.Data[:4]
	_, err = c.DecodeMessage(msg)
	assert.ErrorIs(t, err, events.ErrTruncatedDiscriminator)
}
