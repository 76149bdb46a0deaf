// Package pumpfun holds the events the pump.fun bonding-curve program
// writes to its logs. Tags are plain 8-byte event discriminators.
package pumpfun

import (
	"sync"

	"github.com/aurora-is-near/stream-events/discriminator"
	"github.com/aurora-is-near/stream-events/events"
	"github.com/aurora-is-near/stream-events/types"
)

const Name = "pump.fun"

var ProgramID = types.MustParsePubkey("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")

var (
	CreateEventDiscriminator    = discriminator.MustFromHex("0x1b72a94ddeeb6376")
	TradeEventDiscriminator     = discriminator.MustFromHex("0xbddb7fd34ee661ee")
	CompleteEventDiscriminator  = discriminator.MustFromHex("0x5f72619cd42e9808")
	SetParamsEventDiscriminator = discriminator.MustFromHex("0xdfc39ff63e308f83")
)

type CreateEvent struct {
	Name         string       `json:"name"`
	Symbol       string       `json:"symbol"`
	URI          string       `json:"uri"`
	Mint         types.Pubkey `json:"mint"`
	BondingCurve types.Pubkey `json:"bonding_curve"`
	User         types.Pubkey `json:"user"`
}

func (*CreateEvent) EventName() string { return "CreateEvent" }

type TradeEvent struct {
	Mint                 types.Pubkey `json:"mint"`
	SolAmount            uint64       `json:"sol_amount"`
	TokenAmount          uint64       `json:"token_amount"`
	IsBuy                bool         `json:"is_buy"`
	User                 types.Pubkey `json:"user"`
	Timestamp            int64        `json:"timestamp"`
	VirtualSolReserves   uint64       `json:"virtual_sol_reserves"`
	VirtualTokenReserves uint64       `json:"virtual_token_reserves"`
}

func (*TradeEvent) EventName() string { return "TradeEvent" }

type CompleteEvent struct {
	User         types.Pubkey `json:"user"`
	Mint         types.Pubkey `json:"mint"`
	BondingCurve types.Pubkey `json:"bonding_curve"`
	Timestamp    int64        `json:"timestamp"`
}

func (*CompleteEvent) EventName() string { return "CompleteEvent" }

type SetParamsEvent struct {
	FeeRecipient                types.Pubkey `json:"fee_recipient"`
	InitialVirtualTokenReserves uint64       `json:"initial_virtual_token_reserves"`
	InitialVirtualSolReserves   uint64       `json:"initial_virtual_sol_reserves"`
	InitialRealTokenReserves    uint64       `json:"initial_real_token_reserves"`
	TokenTotalSupply            uint64       `json:"token_total_supply"`
	FeeBasisPoints              uint64       `json:"fee_basis_points"`
}

func (*SetParamsEvent) EventName() string { return "SetParamsEvent" }

func Rules() []events.Rule {
	return []events.Rule{
		{
			Name:          "CreateEvent",
			Discriminator: CreateEventDiscriminator,
			Decode: func(r *events.FieldReader) (events.Event, error) {
				ev := &CreateEvent{}
				r.Str(&ev.Name)
				r.Str(&ev.Symbol)
				r.Str(&ev.URI)
				r.Pubkey(&ev.Mint)
				r.Pubkey(&ev.BondingCurve)
				r.Pubkey(&ev.User)
				return ev, r.Err()
			},
			Encode: func(w *events.FieldWriter, e events.Event) error {
				ev := e.(*CreateEvent)
				w.Str(ev.Name)
				w.Str(ev.Symbol)
				w.Str(ev.URI)
				w.Pubkey(ev.Mint)
				w.Pubkey(ev.BondingCurve)
				w.Pubkey(ev.User)
				return nil
			},
		},
		{
			Name:          "TradeEvent",
			Discriminator: TradeEventDiscriminator,
			Decode: func(r *events.FieldReader) (events.Event, error) {
				ev := &TradeEvent{}
				r.Pubkey(&ev.Mint)
				r.U64(&ev.SolAmount)
				r.U64(&ev.TokenAmount)
				r.Bool(&ev.IsBuy)
				r.Pubkey(&ev.User)
				r.I64(&ev.Timestamp)
				r.U64(&ev.VirtualSolReserves)
				r.U64(&ev.VirtualTokenReserves)
				return ev, r.Err()
			},
			Encode: func(w *events.FieldWriter, e events.Event) error {
				ev := e.(*TradeEvent)
				w.Pubkey(ev.Mint)
				w.U64(ev.SolAmount)
				w.U64(ev.TokenAmount)
				w.Bool(ev.IsBuy)
				w.Pubkey(ev.User)
				w.I64(ev.Timestamp)
				w.U64(ev.VirtualSolReserves)
				w.U64(ev.VirtualTokenReserves)
				return nil
			},
		},
		{
			Name:          "CompleteEvent",
			Discriminator: CompleteEventDiscriminator,
			Decode: func(r *events.FieldReader) (events.Event, error) {
				ev := &CompleteEvent{}
				r.Pubkey(&ev.User)
				r.Pubkey(&ev.Mint)
				r.Pubkey(&ev.BondingCurve)
				r.I64(&ev.Timestamp)
				return ev, r.Err()
			},
			Encode: func(w *events.FieldWriter, e events.Event) error {
				ev := e.(*CompleteEvent)
				w.Pubkey(ev.User)
				w.Pubkey(ev.Mint)
				w.Pubkey(ev.BondingCurve)
				w.I64(ev.Timestamp)
				return nil
			},
		},
		{
			Name:          "SetParamsEvent",
			Discriminator: SetParamsEventDiscriminator,
			Decode: func(r *events.FieldReader) (events.Event, error) {
				ev := &SetParamsEvent{}
				r.Pubkey(&ev.FeeRecipient)
				r.U64(&ev.InitialVirtualTokenReserves)
				r.U64(&ev.InitialVirtualSolReserves)
				r.U64(&ev.InitialRealTokenReserves)
				r.U64(&ev.TokenTotalSupply)
				r.U64(&ev.FeeBasisPoints)
				return ev, r.Err()
			},
			Encode: func(w *events.FieldWriter, e events.Event) error {
				ev := e.(*SetParamsEvent)
				w.Pubkey(ev.FeeRecipient)
				w.U64(ev.InitialVirtualTokenReserves)
				w.U64(ev.InitialVirtualSolReserves)
				w.U64(ev.InitialRealTokenReserves)
				w.U64(ev.TokenTotalSupply)
				w.U64(ev.FeeBasisPoints)
				return nil
			},
		},
	}
}

var registry = sync.OnceValue(func() *events.Registry {
	return events.MustBuildRegistry(discriminator.DefaultWidth, Rules())
})

// Registry returns the program's shared registry.
func Registry() *events.Registry {
	return registry()
}
