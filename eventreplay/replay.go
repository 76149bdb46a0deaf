// Package eventreplay decodes archived event chunks offline and tallies the
// outcome per program and event.
package eventreplay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aurora-is-near/stream-events/catalog"
	"github.com/aurora-is-near/stream-events/eventbackup/chunks"
	"github.com/aurora-is-near/stream-events/eventbackup/record"
	"github.com/aurora-is-near/stream-events/eventpipe"
	"github.com/aurora-is-near/stream-events/events"
	"github.com/aurora-is-near/stream-events/types"
	"github.com/aurora-is-near/stream-events/util"
)

const (
	saveInterval = 10000
	logInterval  = 3 * time.Second
)

const (
	kindInvalidMessage = "InvalidMessage"
	kindUnknownProgram = "UnknownProgram"
)

type Replay struct {
	Chunks *chunks.Chunks

	StartSeq uint64
	// EndSeq (exclusive) stops the replay; 0 reads every chunk.
	EndSeq uint64

	Workers       int
	IgnoreSeqGaps bool
	// StatePath, when set, persists progress so the replay can resume.
	StatePath string

	catalog *catalog.Catalog
}

type entry struct {
	seq  uint64
	data []byte
	err  error
}

type outcome struct {
	seq       uint64
	program   string
	event     string
	unknown   bool
	errKind   string
	size      int
	decodeErr error
}

func (r *Replay) FillMissingFields() {
	if r.catalog == nil {
		r.catalog = catalog.Default()
	}
}

// Run replays [StartSeq, EndSeq) and returns the accumulated state.
// A cancelled ctx stops the replay and returns the state reached so far.
func (r *Replay) Run(ctx context.Context) (*State, error) {
	r.FillMissingFields()

	state, err := ReadStateOrEmpty(r.StatePath)
	if err != nil {
		return nil, fmt.Errorf("unable to read state: %w", err)
	}

	if err := r.Chunks.Open(); err != nil {
		return nil, fmt.Errorf("unable to open backup: %w", err)
	}
	defer r.Chunks.CloseReader()
	zap.S().Infof("Replay: got %d chunks", len(r.Chunks.GetChunkRanges()))

	seekSeq := util.Max(state.LastProcessedSeq+1, r.StartSeq)

	readCtx, cancel := context.WithCancel(ctx)
	src := make(chan *entry, 100)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		r.read(readCtx, seekSeq, src)
	}()
	defer func() {
		cancel()
		<-readDone
	}()

	lastLogTime := time.Now()
	msgsSinceLastLog := 0

	pipe := &eventpipe.Pipe[*entry, *outcome]{
		Workers: r.Workers,
		Decode:  r.decode,
		Process: func(in *entry, out *outcome, err error) error {
			if in.err != nil {
				return in.err
			}
			if err != nil {
				return err
			}
			r.acknowledge(state, out)

			if r.StatePath != "" && state.Messages%saveInterval == 0 {
				if err := state.Save(r.StatePath); err != nil {
					return fmt.Errorf("unable to save state: %w", err)
				}
			}

			msgsSinceLastLog++
			if now := time.Now(); now.Sub(lastLogTime) >= logInterval {
				zap.S().Infof("Replay: seq=%d, speed=%0.2fmsgs/sec", out.seq, float64(msgsSinceLastLog)/now.Sub(lastLogTime).Seconds())
				lastLogTime, msgsSinceLastLog = now, 0
			}
			return nil
		},
	}

	err = pipe.Run(ctx, src)
	if errors.Is(err, context.Canceled) {
		zap.S().Infof("Replay: interrupted at seq=%d", state.LastProcessedSeq)
		err = nil
	}
	if r.StatePath != "" {
		if saveErr := state.Save(r.StatePath); saveErr != nil {
			zap.S().Errorf("Replay: unable to save state: %v", saveErr)
		}
	}
	return state, err
}

func (r *Replay) read(ctx context.Context, seekSeq uint64, out chan<- *entry) {
	defer close(out)

	send := func(e *entry) bool {
		select {
		case out <- e:
			return true
		case <-ctx.Done():
			return false
		}
	}

	zap.S().Infof("Replay: seeking seq=%d...", seekSeq)
	if err := r.Chunks.SeekReader(seekSeq); err != nil {
		if errors.Is(err, chunks.ErrNotFound) {
			zap.S().Infof("Replay: nothing to read")
			return
		}
		send(&entry{err: fmt.Errorf("unable to seek seq=%d: %w", seekSeq, err)})
		return
	}

	prevSeq := uint64(0)
	for ctx.Err() == nil {
		seq, data, err := r.Chunks.ReadNext()
		if err != nil {
			if errors.Is(err, chunks.ErrNotFound) {
				zap.S().Infof("Replay: reading finished after seq=%d", prevSeq)
				return
			}
			send(&entry{err: fmt.Errorf("unable to read next msg after seq=%d: %w", prevSeq, err)})
			return
		}
		if r.EndSeq > 0 && seq >= r.EndSeq {
			zap.S().Infof("Replay: reached end seq: %d >= %d", seq, r.EndSeq)
			return
		}
		if !r.IgnoreSeqGaps && prevSeq > 0 && seq != prevSeq+1 {
			send(&entry{err: fmt.Errorf("got unexpected seq %d after seq %d", seq, prevSeq)})
			return
		}
		if !send(&entry{seq: seq, data: data}) {
			return
		}
		prevSeq = seq
	}
}

func (r *Replay) decode(in *entry) (*outcome, error) {
	if in.err != nil {
		return nil, nil
	}
	rec, err := record.Unmarshal(in.data)
	if err != nil {
		return nil, fmt.Errorf("unable to unmarshal record at seq=%d: %w", in.seq, err)
	}
	out := &outcome{seq: in.seq, size: len(rec.Data)}

	msg, err := types.ParseEventMessage(in.seq, rec.Header, rec.Data)
	if err != nil {
		out.errKind, out.decodeErr = kindInvalidMessage, err
		return out, nil
	}
	out.program = msg.ProgramID.String()
	if p, ok := r.catalog.Lookup(msg.ProgramID); ok {
		out.program = p.Name
	}

	ev, err := r.catalog.Decode(msg.ProgramID, msg.Data)
	switch {
	case errors.Is(err, catalog.ErrUnknownProgram):
		out.errKind, out.decodeErr = kindUnknownProgram, err
	case err != nil:
		out.errKind, out.decodeErr = events.KindOf(err).String(), err
	default:
		out.event = ev.EventName()
		_, out.unknown = ev.(*events.Unknown)
	}
	return out, nil
}

func (r *Replay) acknowledge(state *State, out *outcome) {
	if state.LastProcessedSeq > 0 && out.seq != state.LastProcessedSeq+1 {
		state.Gaps++
	}
	state.LastProcessedSeq = out.seq
	state.Messages++
	state.acknowledgeSize(out.size)

	switch {
	case out.decodeErr != nil:
		zap.S().Debugf("Replay: seq=%d: %v", out.seq, out.decodeErr)
		state.acknowledgeError(out.program, out.errKind)
	case out.unknown:
		state.Unknown[out.program]++
	default:
		state.acknowledgeEvent(out.program, out.event)
	}
}
