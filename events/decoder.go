package events

import (
	"errors"
	"fmt"

	"github.com/aurora-is-near/stream-events/discriminator"
)

// Decoder decodes discriminator-prefixed messages against one registry.
//
// Bytes left after the last declared field are ignored unless
// RejectTrailing is set: newer payloads may append fields that an older
// rule table does not know about.
type Decoder struct {
	Registry       *Registry
	RejectTrailing bool
}

// Decode decodes buf with the default (trailing-tolerant) policy.
func Decode(buf []byte, reg *Registry) (Event, error) {
	d := Decoder{Registry: reg}
	return d.Decode(buf)
}

func (d *Decoder) Decode(buf []byte) (Event, error) {
	width := d.Registry.Width()
	if len(buf) < width {
		return nil, &Error{
			Kind:   KindTruncatedDiscriminator,
			Field:  -1,
			Offset: len(buf),
			Reason: fmt.Sprintf("need %d bytes, got %d", width, len(buf)),
		}
	}

	tag := discriminator.Discriminator(buf[:width])
	payload := buf[width:]

	rule, ok := d.Registry.Lookup(tag)
	if !ok {
		unknown := &Unknown{
			Discriminator: tag.Clone(),
			Payload:       make([]byte, len(payload)),
		}
		copy(unknown.Payload, payload)
		return unknown, nil
	}

	r := NewFieldReader(payload, width)
	ev, err := rule.Decode(r)
	if err == nil {
		err = r.Err()
	}
	if err != nil {
		return nil, annotate(err, rule, r)
	}
	if ev == nil {
		return nil, &Error{
			Kind:          KindInvalidRule,
			Field:         -1,
			Name:          rule.Name,
			Discriminator: rule.Discriminator,
			Reason:        "rule returned no event",
		}
	}

	if d.RejectTrailing && r.Remaining() > 0 {
		return nil, &Error{
			Kind:          KindTrailingBytes,
			Field:         -1,
			Offset:        width + r.Consumed(),
			Name:          rule.Name,
			Discriminator: rule.Discriminator,
			Reason:        fmt.Sprintf("%d unread bytes", r.Remaining()),
		}
	}

	return ev, nil
}

func annotate(err error, rule *Rule, r *FieldReader) error {
	var e *Error
	if !errors.As(err, &e) {
		field := r.Index() - 1
		if field < 0 {
			field = 0
		}
		e = &Error{
			Kind:   KindInvalidFieldEncoding,
			Field:  field,
			Offset: r.base + r.Consumed(),
			Reason: err.Error(),
			Err:    err,
		}
	} else {
		c := *e
		e = &c
	}
	if len(e.Name) == 0 {
		e.Name = rule.Name
	}
	if len(e.Discriminator) == 0 {
		e.Discriminator = rule.Discriminator
	}
	return e
}

// Encode is the inverse of Decode: tag followed by the rule's encoding.
// *Unknown re-encodes to its tag and raw payload.
func Encode(reg *Registry, ev Event) ([]byte, error) {
	if unknown, ok := ev.(*Unknown); ok {
		if unknown.Discriminator.Width() != reg.Width() {
			return nil, &Error{
				Kind:          KindDiscriminatorWidth,
				Field:         -1,
				Discriminator: unknown.Discriminator,
				Reason:        fmt.Sprintf("expected %d bytes, got %d", reg.Width(), unknown.Discriminator.Width()),
			}
		}
		out := make([]byte, 0, reg.Width()+len(unknown.Payload))
		out = append(out, unknown.Discriminator...)
		return append(out, unknown.Payload...), nil
	}

	rule, ok := reg.LookupName(ev.EventName())
	if !ok {
		return nil, &Error{Kind: KindUnknownEvent, Field: -1, Name: ev.EventName()}
	}
	if rule.Encode == nil {
		return nil, &Error{Kind: KindNoEncoder, Field: -1, Name: rule.Name, Discriminator: rule.Discriminator}
	}

	buf := make([]byte, 0, 64)
	buf = append(buf, rule.Discriminator...)
	w := NewFieldWriter(buf)
	if err := rule.Encode(w, ev); err != nil {
		return nil, fmt.Errorf("unable to encode %s: %w", rule.Name, err)
	}
	return w.Bytes(), nil
}
