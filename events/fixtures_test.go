package events_test

import (
	"bytes"
	"errors"

	"github.com/aurora-is-near/stream-events/borsh"
	"github.com/aurora-is-near/stream-events/discriminator"
	"github.com/aurora-is-near/stream-events/events"
	"github.com/aurora-is-near/stream-events/types"
)

var (
	transferTag = discriminator.Discriminator(bytes.Repeat([]byte{0x01}, 8))
	listingTag  = discriminator.Discriminator(bytes.Repeat([]byte{0x02}, 8))
	tierTag     = discriminator.Discriminator(bytes.Repeat([]byte{0x03}, 8))
)

type Transfer struct {
	Amount uint64
}

func (*Transfer) EventName() string { return "Transfer" }

type Listing struct {
	Seller types.Pubkey
	Price  uint64
	Name   string
	Expiry *int64
	Tags   []uint16
	Active bool
}

func (*Listing) EventName() string { return "Listing" }

type Tier struct {
	Level uint8
}

func (*Tier) EventName() string { return "Tier" }

var errTooHigh = errors.New("tier level out of range")

func testRules() []events.Rule {
	return []events.Rule{
		{
			Name:          "Transfer",
			Discriminator: transferTag,
			Decode: func(r *events.FieldReader) (events.Event, error) {
				ev := &Transfer{}
				r.U64(&ev.Amount)
				return ev, r.Err()
			},
			Encode: func(w *events.FieldWriter, e events.Event) error {
				w.U64(e.(*Transfer).Amount)
				return nil
			},
		},
		{
			Name:          "Listing",
			Discriminator: listingTag,
			Decode: func(r *events.FieldReader) (events.Event, error) {
				ev := &Listing{}
				r.Pubkey(&ev.Seller)
				r.U64(&ev.Price)
				r.Str(&ev.Name)
				events.ReadOption(r, &ev.Expiry, (*borsh.Decoder).DecodeI64)
				events.ReadVec(r, &ev.Tags, 2, (*borsh.Decoder).DecodeU16)
				r.Bool(&ev.Active)
				return ev, r.Err()
			},
			Encode: func(w *events.FieldWriter, e events.Event) error {
				ev := e.(*Listing)
				w.Pubkey(ev.Seller)
				w.U64(ev.Price)
				w.Str(ev.Name)
				events.WriteOption(w, ev.Expiry, (*borsh.Encoder).EncodeI64)
				events.WriteVec(w, ev.Tags, (*borsh.Encoder).EncodeU16)
				w.Bool(ev.Active)
				return nil
			},
		},
		{
			// no encoder
			Name:          "Tier",
			Discriminator: tierTag,
			Decode: func(r *events.FieldReader) (events.Event, error) {
				ev := &Tier{}
				r.U8(&ev.Level)
				if r.Err() == nil && ev.Level > 3 {
					return nil, errTooHigh
				}
				return ev, r.Err()
			},
		},
	}
}

func testRegistry() *events.Registry {
	return events.MustBuildRegistry(discriminator.DefaultWidth, testRules())
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func le64(v uint64) []byte {
	e := borsh.NewEncoder(nil)
	e.EncodeU64(v)
	return e.Bytes()
}
