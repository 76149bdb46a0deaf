package types

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/mr-tron/base58"
)

const PubkeySize = 32

// Pubkey is an ed25519 account address; its text form is base58.
type Pubkey [PubkeySize]byte

func ParsePubkey(s string) (Pubkey, error) {
	var pk Pubkey
	b, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("unable to decode pubkey '%s': %w", s, err)
	}
	if len(b) != PubkeySize {
		return pk, fmt.Errorf("pubkey '%s' has %d bytes, expected %d", s, len(b), PubkeySize)
	}
	copy(pk[:], b)
	return pk, nil
}

func MustParsePubkey(s string) Pubkey {
	pk, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

func (pk Pubkey) String() string {
	return base58.Encode(pk[:])
}

func (pk Pubkey) IsZero() bool {
	return pk == Pubkey{}
}

func (pk Pubkey) MarshalText() ([]byte, error) {
	return []byte(pk.String()), nil
}

func (pk *Pubkey) UnmarshalText(text []byte) error {
	parsed, err := ParsePubkey(string(text))
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}

func (pk Pubkey) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(pk.String())
}

func (pk *Pubkey) UnmarshalCBOR(data []byte) error {
	var s string
	if err := cbor.Unmarshal(data, &s); err != nil {
		return err
	}
	return pk.UnmarshalText([]byte(s))
}
