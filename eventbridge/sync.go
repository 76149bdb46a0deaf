package eventbridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/aurora-is-near/stream-events/stream"
	"github.com/aurora-is-near/stream-events/types"
	"github.com/aurora-is-near/stream-events/util"
)

// errFatal marks failures a restart cannot fix.
var errFatal = errors.New("fatal")

type SyncStopReason struct {
	Error       error
	Recoverable bool
}

type Sync struct {
	bridge *EventBridge

	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan SyncStopReason
}

func StartSync(bridge *EventBridge) *Sync {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Sync{
		bridge:  bridge,
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan SyncStopReason, 1),
	}

	go func() {
		s.stopped <- s.run()
		close(s.stopped)
	}()

	return s
}

func (s *Sync) Stopped() <-chan SyncStopReason {
	return s.stopped
}

func (s *Sync) Stop() {
	s.cancel()
	for range s.stopped {
	}
}

func stopReason(err error) SyncStopReason {
	return SyncStopReason{
		Error:       err,
		Recoverable: err != nil && !errors.Is(err, errFatal),
	}
}

func (s *Sync) run() SyncStopReason {
	eb := s.bridge
	m := eb.Metrics

	zap.S().Infof("Bridge: connecting to output stream...")
	output, err := stream.ConnectStream(eb.Output)
	if err != nil {
		return stopReason(fmt.Errorf("unable to connect to output stream: %w", err))
	}
	defer output.Disconnect()
	m.OutputStreamConnected.Set(1)
	defer m.OutputStreamConnected.Set(0)

	startSeq, err := resumeSeq(output, eb.StartSeq)
	if err != nil {
		return stopReason(err)
	}
	if eb.EndSeq > 0 && startSeq >= eb.EndSeq {
		zap.S().Infof("Bridge: nothing to do, resume sequence %d >= end sequence %d", startSeq, eb.EndSeq)
		return stopReason(nil)
	}
	zap.S().Infof("Bridge: resuming from input sequence %d", startSeq)

	reader := &stream.AutoReader{
		Stream:          eb.Input,
		Reader:          eb.Reader,
		StartSeq:        startSeq,
		EndSeq:          eb.EndSeq,
		ReconnectWaitMs: eb.ReconnectWaitMs,
	}
	reader.Start()
	defer reader.Stop()
	m.InputStreamConnected.Set(1)
	defer m.InputStreamConnected.Set(0)

	err = eb.pump(s.ctx, reader.Output(), output)
	if errors.Is(err, context.Canceled) {
		return stopReason(nil)
	}
	if err == nil {
		zap.S().Infof("Bridge: reached end sequence %d", eb.EndSeq)
	}
	return stopReason(err)
}

// resumeSeq finds the first input sequence that is not yet published: one
// past the Input-Seq header of the last output message.
func resumeSeq(output stream.Interface, startSeq uint64) (uint64, error) {
	startSeq = util.Max(startSeq, 1)

	info, _, err := output.GetInfo(0)
	if err != nil {
		return 0, fmt.Errorf("unable to get output stream info: %w", err)
	}
	if info.State.LastSeq == 0 {
		return startSeq, nil
	}

	last, err := output.Get(info.State.LastSeq)
	if err != nil {
		return 0, fmt.Errorf("unable to get last output message (seq=%d): %w", info.State.LastSeq, err)
	}
	value := last.Header.Get(types.HeaderInputSeq)
	if len(value) == 0 {
		return 0, fmt.Errorf("%w: last output message (seq=%d) has no '%s' header", errFatal, info.State.LastSeq, types.HeaderInputSeq)
	}
	inputSeq, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: unable to parse '%s' header '%s': %v", errFatal, types.HeaderInputSeq, value, err)
	}

	return util.Max(inputSeq+1, startSeq), nil
}
