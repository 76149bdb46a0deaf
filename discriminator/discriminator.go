package discriminator

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// DefaultWidth is the tag width of instructions, accounts and events
	// emitted straight into program logs.
	DefaultWidth = 8
	// EventCPIWidth is the tag width of events emitted through a self-CPI:
	// EventCPIPrefix followed by the event's own tag.
	EventCPIWidth = 16
)

// EventCPIPrefix prefixes the data of every self-CPI event instruction.
// Anchor reads sha256("anchor:event")[:8] as a big-endian u64 tag and
// writes it little-endian, so the bytes appear reversed on the wire.
var EventCPIPrefix = eventIxTag()

func eventIxTag() Discriminator {
	d := Anchor("anchor", "event")
	for i, j := 0, len(d)-1; i < j; i, j = i+1, j-1 {
		d[i], d[j] = d[j], d[i]
	}
	return d
}

// Discriminator is a fixed-width tag identifying one message variant.
type Discriminator []byte

func FromHex(s string) (Discriminator, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(s) == 0 {
		return nil, fmt.Errorf("empty discriminator")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("unable to parse discriminator '%s': %w", s, err)
	}
	return Discriminator(b), nil
}

func MustFromHex(s string) Discriminator {
	d, err := FromHex(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Anchor derives a tag the way Anchor does: sha256("<namespace>:<name>")[:8].
func Anchor(namespace string, name string) Discriminator {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	d := make(Discriminator, DefaultWidth)
	copy(d, sum[:DefaultWidth])
	return d
}

func AnchorEvent(name string) Discriminator {
	return Anchor("event", name)
}

func AnchorEventCPI(name string) Discriminator {
	d := make(Discriminator, 0, EventCPIWidth)
	d = append(d, EventCPIPrefix...)
	return append(d, AnchorEvent(name)...)
}

func (d Discriminator) Width() int {
	return len(d)
}

// Key returns a comparable form usable as a map key.
func (d Discriminator) Key() string {
	return string(d)
}

func (d Discriminator) Equal(other Discriminator) bool {
	return bytes.Equal(d, other)
}

func (d Discriminator) Clone() Discriminator {
	if d == nil {
		return nil
	}
	c := make(Discriminator, len(d))
	copy(c, d)
	return c
}

func (d Discriminator) String() string {
	return "0x" + hex.EncodeToString(d)
}
