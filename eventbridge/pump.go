package eventbridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/aurora-is-near/stream-events/catalog"
	"github.com/aurora-is-near/stream-events/eventpipe"
	"github.com/aurora-is-near/stream-events/events"
	"github.com/aurora-is-near/stream-events/stream"
	"github.com/aurora-is-near/stream-events/types"
	"github.com/aurora-is-near/stream-events/util"
)

// errorKind labels a decode failure for metrics.
func errorKind(err error) string {
	if kind := events.KindOf(err); kind != 0 {
		return kind.String()
	}
	return "InvalidMessage"
}

type decoded struct {
	msg *types.EventMessage
	doc *types.DecodedEvent
}

func (eb *EventBridge) decode(in *stream.ReaderOutput) (*decoded, error) {
	if in.Error != nil {
		return nil, in.Error
	}
	msg, err := types.ParseEventMessage(in.Sequence(), in.Msg.Header, in.Msg.Data)
	if err != nil {
		return nil, fmt.Errorf("unable to parse input message: %w", err)
	}

	start := time.Now()
	doc, err := eb.catalog.DecodeMessage(msg)
	eb.Metrics.DecodeLatency.Observe(time.Since(start).Seconds())
	return &decoded{msg: msg, doc: doc}, err
}

// pump decodes src concurrently and publishes the documents to output in
// input order. It returns nil when src is exhausted.
func (eb *EventBridge) pump(ctx context.Context, src <-chan *stream.ReaderOutput, output stream.Interface) error {
	pipe := &eventpipe.Pipe[*stream.ReaderOutput, *decoded]{
		Workers: eb.Workers,
		Decode:  eb.decode,
		Process: func(in *stream.ReaderOutput, d *decoded, err error) error {
			if in.Error != nil {
				return in.Error
			}
			if err != nil {
				return eb.handleDecodeError(in.Sequence(), d, err)
			}
			return eb.publish(ctx, output, d)
		},
	}
	return pipe.Run(ctx, src)
}

func (eb *EventBridge) handleDecodeError(seq uint64, d *decoded, err error) error {
	program := ""
	if d != nil && d.msg != nil {
		program = d.msg.ProgramID.String()
		if p, ok := eb.catalog.Lookup(d.msg.ProgramID); ok {
			program = p.Name
		}
	}

	if errors.Is(err, catalog.ErrUnknownProgram) {
		zap.S().Debugf("Bridge: skipping seq=%d: %v", seq, err)
		eb.Metrics.SkipsCount.Inc()
		return nil
	}

	eb.Metrics.DecodeErrors.WithLabelValues(program, errorKind(err)).Inc()
	if eb.SkipDecodeErrors {
		zap.S().Warnf("Bridge: skipping undecodable seq=%d: %v", seq, err)
		eb.Metrics.SkipsCount.Inc()
		return nil
	}
	return fmt.Errorf("%w: unable to decode seq=%d: %v", errFatal, seq, err)
}

func (eb *EventBridge) publish(ctx context.Context, output stream.Interface, d *decoded) error {
	data, err := types.EncodeDecodedEvent(d.doc)
	if err != nil {
		return fmt.Errorf("%w: %v", errFatal, err)
	}

	inputSeq := strconv.FormatUint(d.msg.Sequence, 10)
	var ack *nats.PubAck
	for attempt := uint(1); ; attempt++ {
		header := make(nats.Header)
		header.Set(types.HeaderInputSeq, inputSeq)
		ack, err = output.Write(data, header, inputSeq)
		if err == nil {
			break
		}
		if attempt >= eb.MaxPushAttempts {
			return fmt.Errorf("unable to publish seq=%d after %d attempts: %w", d.msg.Sequence, attempt, err)
		}
		zap.S().Warnf("Bridge: unable to publish seq=%d (attempt %d/%d): %v", d.msg.Sequence, attempt, eb.MaxPushAttempts, err)
		eb.Metrics.PublishRetries.Inc()
		if !util.CtxSleep(ctx, time.Duration(eb.PushRetryWaitMs)*time.Millisecond) {
			return ctx.Err()
		}
	}

	if ack.Duplicate {
		zap.S().Debugf("Bridge: seq=%d was already published", d.msg.Sequence)
	}

	programName := d.doc.ProgramName
	if d.doc.Unknown {
		eb.Metrics.UnknownEvents.WithLabelValues(programName).Inc()
	} else {
		eb.Metrics.DecodedEvents.WithLabelValues(programName, d.doc.Event).Inc()
	}
	eb.Metrics.InputStreamSequenceNumber.Set(float64(d.msg.Sequence))
	eb.Metrics.OutputStreamSequenceNumber.Set(float64(ack.Sequence))
	eb.Metrics.LastSlot.Set(float64(d.msg.Slot))
	return nil
}
