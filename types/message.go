package types

import (
	"fmt"
	"strconv"

	"github.com/fxamacker/cbor/v2"
)

// Headers carried by raw event messages on the input stream.
const (
	HeaderProgramID = "Program-Id"
	HeaderSlot      = "Slot"
	HeaderSignature = "Signature"
	// HeaderInputSeq is set on published documents and points back to the
	// input stream sequence they were decoded from.
	HeaderInputSeq = "Input-Seq"
)

// EventMessage is one raw program event as it travels on the input stream:
// discriminator-prefixed bytes plus where they were observed.
type EventMessage struct {
	Sequence  uint64
	ProgramID Pubkey
	Slot      uint64
	Signature string
	Data      []byte
}

func ParseEventMessage(seq uint64, header map[string][]string, data []byte) (*EventMessage, error) {
	msg := &EventMessage{
		Sequence: seq,
		Data:     data,
	}

	programID, err := singleHeader(header, HeaderProgramID)
	if err != nil {
		return nil, err
	}
	if msg.ProgramID, err = ParsePubkey(programID); err != nil {
		return nil, fmt.Errorf("unable to parse '%s' header: %w", HeaderProgramID, err)
	}

	if values := header[HeaderSlot]; len(values) > 0 {
		if msg.Slot, err = strconv.ParseUint(values[0], 10, 64); err != nil {
			return nil, fmt.Errorf("unable to parse '%s' header '%s': %w", HeaderSlot, values[0], err)
		}
	}
	if values := header[HeaderSignature]; len(values) > 0 {
		msg.Signature = values[0]
	}

	return msg, nil
}

// Header renders the metadata back into message headers.
func (m *EventMessage) Header() map[string][]string {
	h := map[string][]string{
		HeaderProgramID: {m.ProgramID.String()},
		HeaderSlot:      {strconv.FormatUint(m.Slot, 10)},
	}
	if len(m.Signature) > 0 {
		h[HeaderSignature] = []string{m.Signature}
	}
	return h
}

func singleHeader(header map[string][]string, key string) (string, error) {
	values, ok := header[key]
	if !ok {
		return "", fmt.Errorf("missing '%s' header", key)
	}
	if len(values) != 1 {
		return "", fmt.Errorf("header '%s' has %d values, expected exactly 1", key, len(values))
	}
	return values[0], nil
}

// DecodedEvent is the document published for every decoded input message.
// Fields holds the CBOR form of the typed event; Payload is set instead when
// the discriminator was not recognized.
type DecodedEvent struct {
	Sequence      uint64          `cbor:"sequence" json:"sequence"`
	Slot          uint64          `cbor:"slot" json:"slot"`
	Signature     string          `cbor:"signature,omitempty" json:"signature,omitempty"`
	Program       Pubkey          `cbor:"program" json:"program"`
	ProgramName   string          `cbor:"program_name" json:"program_name"`
	Event         string          `cbor:"event" json:"event"`
	Discriminator string          `cbor:"discriminator" json:"discriminator"`
	Unknown       bool            `cbor:"unknown,omitempty" json:"unknown,omitempty"`
	Fields        cbor.RawMessage `cbor:"fields,omitempty" json:"-"`
	Payload       []byte          `cbor:"payload,omitempty" json:"payload,omitempty"`
}

var encMode = func() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// EncodeDecodedEvent renders de in canonical CBOR, so re-publishing the
// same input yields identical bytes.
func EncodeDecodedEvent(de *DecodedEvent) ([]byte, error) {
	data, err := encMode.Marshal(de)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal decoded event: %w", err)
	}
	return data, nil
}

func DecodeDecodedEvent(data []byte) (*DecodedEvent, error) {
	de := &DecodedEvent{}
	if err := cbor.Unmarshal(data, de); err != nil {
		return nil, fmt.Errorf("unable to unmarshal decoded event: %w", err)
	}
	return de, nil
}
