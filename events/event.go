package events

import "github.com/aurora-is-near/stream-events/discriminator"

// Event is a decoded message. A registry only ever produces its own
// registered variants or *Unknown, so callers type-switch over that set.
type Event interface {
	EventName() string
}

const UnknownEventName = "Unknown"

// Unknown is the successful result of decoding an unregistered tag.
type Unknown struct {
	Discriminator discriminator.Discriminator `json:"discriminator"`
	Payload       []byte                      `json:"payload"`
}

func (*Unknown) EventName() string {
	return UnknownEventName
}

// Rule decodes (and optionally encodes) one event variant.
type Rule struct {
	Name          string
	Discriminator discriminator.Discriminator
	Decode        func(r *FieldReader) (Event, error)
	Encode        func(w *FieldWriter, ev Event) error
}
