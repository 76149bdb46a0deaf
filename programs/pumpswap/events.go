// Package pumpswap holds the admin events of the pump.fun AMM. They are
// emitted through a self-CPI, so tags are 16 bytes wide.
package pumpswap

import (
	"sync"

	"github.com/aurora-is-near/stream-events/discriminator"
	"github.com/aurora-is-near/stream-events/events"
	"github.com/aurora-is-near/stream-events/types"
)

const (
	Name = "pump.fun AMM"

	// FeeRecipientCount is the fixed number of protocol fee recipients.
	FeeRecipientCount = 8
)

var ProgramID = types.MustParsePubkey("pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA")

var (
	UpdateFeeConfigEventDiscriminator = discriminator.MustFromHex("0xe445a52e51cb9a1d5a1741233ef4bcd0")
	UpdateAdminEventDiscriminator     = discriminator.AnchorEventCPI("UpdateAdminEvent")
	DisableEventDiscriminator         = discriminator.AnchorEventCPI("DisableEvent")
	ExtendAccountEventDiscriminator   = discriminator.AnchorEventCPI("ExtendAccountEvent")
)

type UpdateFeeConfigEvent struct {
	Timestamp              int64                           `json:"timestamp"`
	Admin                  types.Pubkey                    `json:"admin"`
	LpFeeBasisPoints       uint64                          `json:"lp_fee_basis_points"`
	ProtocolFeeBasisPoints uint64                          `json:"protocol_fee_basis_points"`
	ProtocolFeeRecipients  [FeeRecipientCount]types.Pubkey `json:"protocol_fee_recipients"`
}

func (*UpdateFeeConfigEvent) EventName() string { return "UpdateFeeConfigEvent" }

type UpdateAdminEvent struct {
	Timestamp int64        `json:"timestamp"`
	Admin     types.Pubkey `json:"admin"`
	NewAdmin  types.Pubkey `json:"new_admin"`
}

func (*UpdateAdminEvent) EventName() string { return "UpdateAdminEvent" }

type DisableEvent struct {
	Timestamp         int64        `json:"timestamp"`
	Admin             types.Pubkey `json:"admin"`
	DisableCreatePool bool         `json:"disable_create_pool"`
	DisableDeposit    bool         `json:"disable_deposit"`
	DisableWithdraw   bool         `json:"disable_withdraw"`
	DisableBuy        bool         `json:"disable_buy"`
	DisableSell       bool         `json:"disable_sell"`
}

func (*DisableEvent) EventName() string { return "DisableEvent" }

type ExtendAccountEvent struct {
	Timestamp   int64        `json:"timestamp"`
	Account     types.Pubkey `json:"account"`
	User        types.Pubkey `json:"user"`
	CurrentSize uint64       `json:"current_size"`
	NewSize     uint64       `json:"new_size"`
}

func (*ExtendAccountEvent) EventName() string { return "ExtendAccountEvent" }

func Rules() []events.Rule {
	return []events.Rule{
		{
			Name:          "UpdateFeeConfigEvent",
			Discriminator: UpdateFeeConfigEventDiscriminator,
			Decode: func(r *events.FieldReader) (events.Event, error) {
				ev := &UpdateFeeConfigEvent{}
				r.I64(&ev.Timestamp)
				r.Pubkey(&ev.Admin)
				r.U64(&ev.LpFeeBasisPoints)
				r.U64(&ev.ProtocolFeeBasisPoints)
				r.Pubkeys(ev.ProtocolFeeRecipients[:])
				return ev, r.Err()
			},
			Encode: func(w *events.FieldWriter, e events.Event) error {
				ev := e.(*UpdateFeeConfigEvent)
				w.I64(ev.Timestamp)
				w.Pubkey(ev.Admin)
				w.U64(ev.LpFeeBasisPoints)
				w.U64(ev.ProtocolFeeBasisPoints)
				w.Pubkeys(ev.ProtocolFeeRecipients[:])
				return nil
			},
		},
		{
			Name:          "UpdateAdminEvent",
			Discriminator: UpdateAdminEventDiscriminator,
			Decode: func(r *events.FieldReader) (events.Event, error) {
				ev := &UpdateAdminEvent{}
				r.I64(&ev.Timestamp)
				r.Pubkey(&ev.Admin)
				r.Pubkey(&ev.NewAdmin)
				return ev, r.Err()
			},
			Encode: func(w *events.FieldWriter, e events.Event) error {
				ev := e.(*UpdateAdminEvent)
				w.I64(ev.Timestamp)
				w.Pubkey(ev.Admin)
				w.Pubkey(ev.NewAdmin)
				return nil
			},
		},
		{
			Name:          "DisableEvent",
			Discriminator: DisableEventDiscriminator,
			Decode: func(r *events.FieldReader) (events.Event, error) {
				ev := &DisableEvent{}
				r.I64(&ev.Timestamp)
				r.Pubkey(&ev.Admin)
				r.Bool(&ev.DisableCreatePool)
				r.Bool(&ev.DisableDeposit)
				r.Bool(&ev.DisableWithdraw)
				r.Bool(&ev.DisableBuy)
				r.Bool(&ev.DisableSell)
				return ev, r.Err()
			},
			Encode: func(w *events.FieldWriter, e events.Event) error {
				ev := e.(*DisableEvent)
				w.I64(ev.Timestamp)
				w.Pubkey(ev.Admin)
				w.Bool(ev.DisableCreatePool)
				w.Bool(ev.DisableDeposit)
				w.Bool(ev.DisableWithdraw)
				w.Bool(ev.DisableBuy)
				w.Bool(ev.DisableSell)
				return nil
			},
		},
		{
			Name:          "ExtendAccountEvent",
			Discriminator: ExtendAccountEventDiscriminator,
			Decode: func(r *events.FieldReader) (events.Event, error) {
				ev := &ExtendAccountEvent{}
				r.I64(&ev.Timestamp)
				r.Pubkey(&ev.Account)
				r.Pubkey(&ev.User)
				r.U64(&ev.CurrentSize)
				r.U64(&ev.NewSize)
				return ev, r.Err()
			},
			Encode: func(w *events.FieldWriter, e events.Event) error {
				ev := e.(*ExtendAccountEvent)
				w.I64(ev.Timestamp)
				w.Pubkey(ev.Account)
				w.Pubkey(ev.User)
				w.U64(ev.CurrentSize)
				w.U64(ev.NewSize)
				return nil
			},
		},
	}
}

var registry = sync.OnceValue(func() *events.Registry {
	return events.MustBuildRegistry(discriminator.EventCPIWidth, Rules())
})

func Registry() *events.Registry {
	return registry()
}
