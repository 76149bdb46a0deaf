package pumpfun

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurora-is-near/stream-events/borsh"
	"github.com/aurora-is-near/stream-events/discriminator"
	"github.com/aurora-is-near/stream-events/events"
	"github.com/aurora-is-near/stream-events/types"
)

func TestDiscriminators(t *testing.T) {
	assert.Equal(t, discriminator.AnchorEvent("CreateEvent"), CreateEventDiscriminator)
	assert.Equal(t, discriminator.AnchorEvent("TradeEvent"), TradeEventDiscriminator)
	assert.Equal(t, 4, Registry().Len())
	assert.Equal(t, discriminator.DefaultWidth, Registry().Width())
	assert.Same(t, Registry(), Registry())
}

func TestDecodeTradeEvent(t *testing.T) {
	mint := types.Pubkey{1}
	user := types.Pubkey{2}

	e := borsh.NewEncoder(nil)
	e.EncodeBytes(TradeEventDiscriminator)
	e.EncodeBytes(mint[:])
	e.EncodeU64(1_500_000_000)
	e.EncodeU64(35_000_000_000)
	e.EncodeBool(true)
	e.EncodeBytes(user[:])
	e.EncodeI64(1_700_000_000)
	e.EncodeU64(30_000_000_000)
	e.EncodeU64(1_073_000_000_000_000)

	ev, err := events.Decode(e.Bytes(), Registry())
	require.NoError(t, err)
	assert.Equal(t, &TradeEvent{
		Mint:                 mint,
		SolAmount:            1_500_000_000,
		TokenAmount:          35_000_000_000,
		IsBuy:                true,
		User:                 user,
		Timestamp:            1_700_000_000,
		VirtualSolReserves:   30_000_000_000,
		VirtualTokenReserves: 1_073_000_000_000_000,
	}, ev)

	_, err = events.Decode(e.Bytes()[:8+32+8+8], Registry())
	assert.Equal(t, events.KindTruncatedField, events.KindOf(err))
}

func TestRoundTrip(t *testing.T) {
	samples := []events.Event{
		&CreateEvent{Name: "Doge", Symbol: "DOGE", URI: "https://example.org/doge.json", Mint: types.Pubkey{9}},
		&TradeEvent{SolAmount: 1, IsBuy: false, Timestamp: -1},
		&CompleteEvent{Timestamp: 42},
		&SetParamsEvent{FeeBasisPoints: 100, TokenTotalSupply: 1_000_000_000_000_000},
	}
	for _, sample := range samples {
		buf, err := events.Encode(Registry(), sample)
		require.NoError(t, err)
		back, err := events.Decode(buf, Registry())
		require.NoError(t, err)
		assert.Equal(t, sample, back, sample.EventName())
	}
}
