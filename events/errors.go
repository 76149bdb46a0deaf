package events

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aurora-is-near/stream-events/discriminator"
)

type ErrorKind int

const (
	KindDuplicateDiscriminator ErrorKind = iota + 1
	KindDuplicateName
	KindDiscriminatorWidth
	KindInvalidRule
	KindTruncatedDiscriminator
	KindTruncatedField
	KindInvalidFieldEncoding
	KindTrailingBytes
	KindUnknownEvent
	KindNoEncoder
)

var kindNames = map[ErrorKind]string{
	KindDuplicateDiscriminator: "DuplicateDiscriminator",
	KindDuplicateName:          "DuplicateName",
	KindDiscriminatorWidth:     "DiscriminatorWidth",
	KindInvalidRule:            "InvalidRule",
	KindTruncatedDiscriminator: "TruncatedDiscriminator",
	KindTruncatedField:         "TruncatedField",
	KindInvalidFieldEncoding:   "InvalidFieldEncoding",
	KindTrailingBytes:          "TrailingBytes",
	KindUnknownEvent:           "UnknownEvent",
	KindNoEncoder:              "NoEncoder",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrDuplicateDiscriminator = &Error{Kind: KindDuplicateDiscriminator}
	ErrDuplicateName          = &Error{Kind: KindDuplicateName}
	ErrDiscriminatorWidth     = &Error{Kind: KindDiscriminatorWidth}
	ErrInvalidRule            = &Error{Kind: KindInvalidRule}
	ErrTruncatedDiscriminator = &Error{Kind: KindTruncatedDiscriminator}
	ErrTruncatedField         = &Error{Kind: KindTruncatedField}
	ErrInvalidFieldEncoding   = &Error{Kind: KindInvalidFieldEncoding}
	ErrTrailingBytes          = &Error{Kind: KindTrailingBytes}
	ErrUnknownEvent           = &Error{Kind: KindUnknownEvent}
	ErrNoEncoder              = &Error{Kind: KindNoEncoder}
)

// Error is returned by registry construction, decoding and encoding.
// Field is the zero-based index of the failing field (-1 when not
// applicable) and Offset is the absolute byte offset into the message.
type Error struct {
	Kind          ErrorKind
	Field         int
	Offset        int
	Discriminator discriminator.Discriminator
	Name          string
	Reason        string
	Err           error
}

func (e *Error) Error() string {
	parts := []string{e.Kind.String()}
	if len(e.Name) > 0 {
		parts = append(parts, fmt.Sprintf("event=%s", e.Name))
	}
	if len(e.Discriminator) > 0 {
		parts = append(parts, fmt.Sprintf("discriminator=%s", e.Discriminator))
	}
	if e.Field >= 0 && (e.Kind == KindTruncatedField || e.Kind == KindInvalidFieldEncoding) {
		parts = append(parts, fmt.Sprintf("field=%d", e.Field))
	}
	if e.Kind == KindTruncatedDiscriminator || e.Kind == KindTruncatedField ||
		e.Kind == KindInvalidFieldEncoding || e.Kind == KindTrailingBytes {
		parts = append(parts, fmt.Sprintf("offset=%d", e.Offset))
	}
	msg := strings.Join(parts, " ")
	if len(e.Reason) > 0 {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of a decoder error, or 0 for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
