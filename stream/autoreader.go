package stream

import (
	"time"

	"go.uber.org/zap"

	"github.com/aurora-is-near/stream-events/util"
)

// Source is a running reader.
type Source interface {
	Output() <-chan *ReaderOutput
	Stop()
}

// AutoReader keeps a reader running across connection failures and emits a
// gap-free sequence of messages from StartSeq up to (excluding) EndSeq.
// Output is closed once EndSeq is reached or the AutoReader is stopped.
type AutoReader struct {
	Stream          *Opts
	Reader          *ReaderOpts
	StartSeq        uint64
	EndSeq          uint64
	ReconnectWaitMs uint

	// connect starts a source at the given sequence; the returned func
	// releases the connection. Defaults to a NATS stream reader.
	connect func(startSeq uint64, endSeq uint64) (Source, func(), error)

	output  chan *ReaderOutput
	stopper *util.Stopper
}

func (ar *AutoReader) Start() {
	if ar.connect == nil {
		ar.connect = ar.connectNATS
	}
	ar.output = make(chan *ReaderOutput)
	ar.stopper = util.NewStopper()
	ar.stopper.Add(1)
	go ar.run()
}

func (ar *AutoReader) Output() <-chan *ReaderOutput {
	return ar.output
}

func (ar *AutoReader) Stop() {
	ar.stopper.Stop()
}

func (ar *AutoReader) connectNATS(startSeq uint64, endSeq uint64) (Source, func(), error) {
	s, err := ConnectStream(ar.Stream)
	if err != nil {
		return nil, nil, err
	}
	r, err := StartReader(ar.Reader, s, startSeq, endSeq)
	if err != nil {
		s.Disconnect()
		return nil, nil, err
	}
	return r, func() { s.Disconnect() }, nil
}

func (ar *AutoReader) finished(nextSeq uint64) bool {
	return ar.EndSeq > 0 && nextSeq >= ar.EndSeq
}

func (ar *AutoReader) run() {
	defer ar.stopper.Done()
	defer close(ar.output)

	nextSeq := ar.StartSeq
	if nextSeq == 0 {
		nextSeq = 1
	}

	var (
		src     Source
		release func()
		err     error
	)

	disconnect := func() {
		if src != nil {
			src.Stop()
			src = nil
		}
		if release != nil {
			release()
			release = nil
		}
	}
	defer disconnect()

	delivered := false
	connectionProblem := false
	for {
		if ar.finished(nextSeq) {
			zap.S().Infof("AutoReader: reached end sequence %d", ar.EndSeq)
			return
		}

		if ar.stopper.IsStopped() {
			return
		}

		if connectionProblem {
			disconnect()
			zap.S().Infof("AutoReader: waiting for %vms before reconnection...", ar.ReconnectWaitMs)
			if !ar.stopper.Sleep(time.Millisecond * time.Duration(ar.ReconnectWaitMs)) {
				return
			}
			connectionProblem = false
		}

		if src == nil {
			disconnect()
			src, release, err = ar.connect(nextSeq, ar.EndSeq)
			if err != nil {
				zap.S().Warnf("AutoReader: can't start reader: %v", err)
				connectionProblem = true
				continue
			}
		}

		select {
		case <-ar.stopper.Stopped():
			return
		case out, ok := <-src.Output():
			if !ok {
				if ar.finished(nextSeq) {
					continue
				}
				zap.S().Warnf("AutoReader: reader was stopped for some reason")
				connectionProblem = true
				continue
			}
			if out.Error != nil {
				zap.S().Warnf("AutoReader: reader error: %v", out.Error)
				connectionProblem = true
				continue
			}
			if out.Sequence() != nextSeq {
				if !delivered && out.Sequence() > nextSeq {
					// start was purged from the stream
					zap.S().Warnf("AutoReader: start sequence %d is not available, starting from %d", nextSeq, out.Sequence())
					nextSeq = out.Sequence()
				} else {
					zap.S().Warnf("AutoReader: got wrong seq from reader. Expected: %v, found: %v", nextSeq, out.Sequence())
					connectionProblem = true
					continue
				}
			}
			select {
			case <-ar.stopper.Stopped():
				return
			case ar.output <- out:
			}
			delivered = true
			nextSeq++
		}
	}
}
