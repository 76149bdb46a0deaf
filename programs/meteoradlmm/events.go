// Package meteoradlmm holds a subset of the Meteora DLMM self-CPI events.
package meteoradlmm

import (
	"sync"

	"github.com/aurora-is-near/stream-events/discriminator"
	"github.com/aurora-is-near/stream-events/events"
	"github.com/aurora-is-near/stream-events/types"
)

const Name = "Meteora DLMM"

var ProgramID = types.MustParsePubkey("LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo")

var (
	PositionCloseDiscriminator            = discriminator.MustFromHex("0xe445a52e51cb9a1dffc4106b1cca3580")
	IncreaseObservationDiscriminator      = discriminator.MustFromHex("0xe445a52e51cb9a1d63f91179a69ccfd7")
	UpdateRewardDurationDiscriminator     = discriminator.MustFromHex("0xe445a52e51cb9a1ddff5e099311da3ac")
	WithdrawIneligibleRewardDiscriminator = discriminator.MustFromHex("0xe445a52e51cb9a1de7bd419566d79af4")
)

type PositionClose struct {
	Position types.Pubkey `json:"position"`
	Owner    types.Pubkey `json:"owner"`
}

func (*PositionClose) EventName() string { return "PositionClose" }

type IncreaseObservation struct {
	Oracle               types.Pubkey `json:"oracle"`
	NewObservationLength uint64       `json:"new_observation_length"`
}

func (*IncreaseObservation) EventName() string { return "IncreaseObservation" }

type UpdateRewardDuration struct {
	LbPair            types.Pubkey `json:"lb_pair"`
	RewardIndex       uint64       `json:"reward_index"`
	OldRewardDuration uint64       `json:"old_reward_duration"`
	NewRewardDuration uint64       `json:"new_reward_duration"`
}

func (*UpdateRewardDuration) EventName() string { return "UpdateRewardDuration" }

type WithdrawIneligibleReward struct {
	LbPair     types.Pubkey `json:"lb_pair"`
	RewardMint types.Pubkey `json:"reward_mint"`
	Amount     uint64       `json:"amount"`
}

func (*WithdrawIneligibleReward) EventName() string { return "WithdrawIneligibleReward" }

func Rules() []events.Rule {
	return []events.Rule{
		{
			Name:          "PositionClose",
			Discriminator: PositionCloseDiscriminator,
			Decode: func(r *events.FieldReader) (events.Event, error) {
				ev := &PositionClose{}
				r.Pubkey(&ev.Position)
				r.Pubkey(&ev.Owner)
				return ev, r.Err()
			},
			Encode: func(w *events.FieldWriter, e events.Event) error {
				ev := e.(*PositionClose)
				w.Pubkey(ev.Position)
				w.Pubkey(ev.Owner)
				return nil
			},
		},
		{
			Name:          "IncreaseObservation",
			Discriminator: IncreaseObservationDiscriminator,
			Decode: func(r *events.FieldReader) (events.Event, error) {
				ev := &IncreaseObservation{}
				r.Pubkey(&ev.Oracle)
				r.U64(&ev.NewObservationLength)
				return ev, r.Err()
			},
			Encode: func(w *events.FieldWriter, e events.Event) error {
				ev := e.(*IncreaseObservation)
				w.Pubkey(ev.Oracle)
				w.U64(ev.NewObservationLength)
				return nil
			},
		},
		{
			Name:          "UpdateRewardDuration",
			Discriminator: UpdateRewardDurationDiscriminator,
			Decode: func(r *events.FieldReader) (events.Event, error) {
				ev := &UpdateRewardDuration{}
				r.Pubkey(&ev.LbPair)
				r.U64(&ev.RewardIndex)
				r.U64(&ev.OldRewardDuration)
				r.U64(&ev.NewRewardDuration)
				return ev, r.Err()
			},
			Encode: func(w *events.FieldWriter, e events.Event) error {
				ev := e.(*UpdateRewardDuration)
				w.Pubkey(ev.LbPair)
				w.U64(ev.RewardIndex)
				w.U64(ev.OldRewardDuration)
				w.U64(ev.NewRewardDuration)
				return nil
			},
		},
		{
			Name:          "WithdrawIneligibleReward",
			Discriminator: WithdrawIneligibleRewardDiscriminator,
			Decode: func(r *events.FieldReader) (events.Event, error) {
				ev := &WithdrawIneligibleReward{}
				r.Pubkey(&ev.LbPair)
				r.Pubkey(&ev.RewardMint)
				r.U64(&ev.Amount)
				return ev, r.Err()
			},
			Encode: func(w *events.FieldWriter, e events.Event) error {
				ev := e.(*WithdrawIneligibleReward)
				w.Pubkey(ev.LbPair)
				w.Pubkey(ev.RewardMint)
				w.U64(ev.Amount)
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
