package stream

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/time/rate"

	"github.com/aurora-is-near/stream-events/util"
)

const readerMinRps = 0.1

var errStopped = errors.New("stopped")

type ReaderOpts struct {
	MaxRps                       float64
	Burst                        int
	BufferSize                   uint
	MaxRequestBatchSize          uint
	FetchTimeoutMs               uint
	LastSeqUpdateIntervalSeconds uint
	Durable                      string
	StrictStart                  bool
	MaxSilenceSeconds            uint
}

type ReaderOutput struct {
	Msg      *nats.Msg
	Metadata *nats.MsgMetadata
	Error    error
}

// Sequence is the stream sequence of a successful output.
func (o *ReaderOutput) Sequence() uint64 {
	if o.Metadata == nil {
		return 0
	}
	return o.Metadata.Sequence.Stream
}

// Reader pulls messages [startSeq, endSeq) in order. endSeq == 0 means
// follow the stream forever. Any failure is sent as a final output with
// Error set, after which the output is closed.
type Reader struct {
	opts   *ReaderOpts
	stream *Stream

	seq *sequencer

	fetchTimeout          time.Duration
	lastSeqUpdateInterval time.Duration
	maxSilence            time.Duration

	limiter *rate.Limiter
	ctx     context.Context
	cancel  context.CancelFunc
	stopper *util.Stopper
	output  chan *ReaderOutput

	pullSub *nats.Subscription
}

func (opts ReaderOpts) FillMissingFields() *ReaderOpts {
	if opts.MaxRps < readerMinRps {
		opts.MaxRps = readerMinRps
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.MaxRequestBatchSize == 0 {
		opts.MaxRequestBatchSize = 100
	}
	if opts.FetchTimeoutMs == 0 {
		opts.FetchTimeoutMs = 10000
	}
	if opts.LastSeqUpdateIntervalSeconds == 0 {
		opts.LastSeqUpdateIntervalSeconds = 5
	}
	if opts.MaxSilenceSeconds == 0 {
		opts.MaxSilenceSeconds = 10
	}
	return &opts
}

func StartReader(opts *ReaderOpts, stream *Stream, startSeq uint64, endSeq uint64) (*Reader, error) {
	if stream == nil || stream.js == nil {
		return nil, errors.New("stream is not connected")
	}
	opts = opts.FillMissingFields()

	ctx, cancel := context.WithCancel(context.Background())
	r := &Reader{
		opts:   opts,
		stream: stream,

		seq: newSequencer(util.Max(startSeq, 1), endSeq, opts.StrictStart),

		fetchTimeout:          time.Duration(opts.FetchTimeoutMs) * time.Millisecond,
		lastSeqUpdateInterval: time.Duration(opts.LastSeqUpdateIntervalSeconds) * time.Second,
		maxSilence:            time.Duration(opts.MaxSilenceSeconds) * time.Second,

		limiter: rate.NewLimiter(rate.Limit(opts.MaxRps), opts.Burst),
		ctx:     ctx,
		cancel:  cancel,
		stopper: util.NewStopper(),
		output:  make(chan *ReaderOutput, opts.BufferSize),
	}

	if err := r.pullSubscribe(r.seq.next); err != nil {
		cancel()
		return nil, err
	}

	r.log("running...")
	r.stopper.Add(1)
	go r.run()

	return r, nil
}

func (r *Reader) Output() <-chan *ReaderOutput {
	return r.output
}

func (r *Reader) Stop() {
	r.log("stopping...")
	r.cancel()
	r.stopper.Stop()
}

func (r *Reader) run() {
	defer r.stopper.Done()
	defer close(r.output)
	defer r.pullUnsubscribe()

	silence := false
	var silenceStart time.Time

	for {
		if r.seq.finished() {
			r.log("finished")
			return
		}
		if r.stopper.IsStopped() {
			r.log("stopped")
			return
		}

		numUsefulPending, err := r.countNumUsefulPending(r.seq.next)
		if err != nil {
			r.sendErr(fmt.Errorf("unable to count useful pending: %w", err))
			return
		}

		batch, err := r.readPull(numUsefulPending)
		if err == errStopped {
			r.log("stopped")
			return
		}
		if err != nil {
			r.sendErr(fmt.Errorf("unable to obtain next messages: %w", err))
			return
		}

		parsedBatch := make([]*ReaderOutput, len(batch))
		for i, msg := range batch {
			meta, err := msg.Metadata()
			if err != nil {
				r.sendErr(fmt.Errorf("unable to parse message metadata: %w", err))
				return
			}
			parsedBatch[i] = &ReaderOutput{
				Msg:      msg,
				Metadata: meta,
			}
		}

		filteredBatch := r.seq.accept(parsedBatch)
		for _, item := range filteredBatch {
			if err := item.Msg.Ack(); err != nil {
				r.log("unable to ack message [seq=%d] (will ignore): %v", item.Sequence(), err)
			}
		}

		if len(filteredBatch) == 0 && numUsefulPending > 0 {
			if silence {
				if time.Since(silenceStart) > r.maxSilence {
					r.sendErr(fmt.Errorf("max silence exceeded"))
					return
				}
			} else {
				silence = true
				silenceStart = time.Now()
			}
		} else {
			silence = false
		}

		for _, item := range filteredBatch {
			select {
			case <-r.stopper.Stopped():
				r.log("stopped")
				return
			case r.output <- item:
			}
		}
	}
}

func (r *Reader) readPull(numUsefulPending uint64) ([]*nats.Msg, error) {
	batchSize := int(util.Max(util.Min(numUsefulPending, uint64(r.opts.MaxRequestBatchSize)), 1))
	if err := r.limiter.Wait(r.ctx); err != nil {
		return nil, errStopped
	}
	if r.stopper.IsStopped() {
		return nil, errStopped
	}
	batch, err := r.pullSub.Fetch(batchSize, nats.MaxWait(r.fetchTimeout))
	if err != nil && numUsefulPending == 0 {
		return []*nats.Msg{}, nil
	}
	return batch, err
}

func (r *Reader) deleteConsumer() error {
	if len(r.opts.Durable) == 0 {
		return nil
	}
	r.log("making sure that previous consumer is deleted...")
	err := r.stream.js.DeleteConsumer(r.stream.opts.Stream, r.opts.Durable)
	if err != nil && err != nats.ErrConsumerNotFound {
		return fmt.Errorf("can't delete previous consumer: %w", err)
	}
	return nil
}

func (r *Reader) pullSubscribe(startSeq uint64) error {
	r.log("pull-subscribing...")
	if err := r.deleteConsumer(); err != nil {
		return fmt.Errorf("unable to pull-subscribe: %w", err)
	}
	r.log("sending pull-subscribe request [startSeq=%v]...", startSeq)
	var err error
	r.pullSub, err = r.stream.js.PullSubscribe(
		r.stream.opts.Subject,
		r.opts.Durable,
		nats.BindStream(r.stream.opts.Stream),
		nats.StartSequence(startSeq),
		nats.AckExplicit(),
	)
	if err != nil {
		return fmt.Errorf("unable to pull-subscribe: %w", err)
	}
	r.log("pull-subscribed")
	return nil
}

func (r *Reader) pullUnsubscribe() {
	if r.pullSub == nil {
		return
	}
	r.log("pull-unsubscribing...")
	if err := r.pullSub.Unsubscribe(); err != nil {
		r.log("unable to pull-unsubscribe (will ignore): %v", err)
	} else {
		r.log("pull-unsubscribed")
	}
	r.pullSub = nil
}

func (r *Reader) getLastSeq() (uint64, error) {
	info, _, err := r.stream.GetInfo(r.lastSeqUpdateInterval)
	if err != nil {
		return 0, err
	}
	return info.State.LastSeq, nil
}

func (r *Reader) countNumUsefulPending(nextExpectedSeq uint64) (uint64, error) {
	border, err := r.getLastSeq()
	if err != nil {
		return 0, fmt.Errorf("unable to fetch LastSeq: %w", err)
	}
	return usefulPending(nextExpectedSeq, border, r.seq.end), nil
}

// usefulPending counts messages in [next, min(lastSeq, endSeq-1)].
func usefulPending(next uint64, lastSeq uint64, endSeq uint64) uint64 {
	if endSeq > 0 && endSeq-1 < lastSeq {
		lastSeq = endSeq - 1
	}
	if lastSeq >= next {
		return lastSeq - next + 1
	}
	return 0
}

func (r *Reader) sendErr(err error) {
	r.log("%v", err)
	select {
	case <-r.stopper.Stopped():
	case r.output <- &ReaderOutput{Error: err}:
	}
}

func (r *Reader) log(format string, v ...any) {
	r.stream.log(fmt.Sprintf("reader [%s]: ", r.opts.Durable)+format, v...)
}

// sequencer enforces gap-free delivery: batches are sorted and only the
// exact next sequence is let through. Before the first delivery a later
// sequence is accepted unless strict, since startSeq may have been purged.
type sequencer struct {
	next   uint64
	end    uint64
	first  bool
	strict bool
}

func newSequencer(start uint64, end uint64, strict bool) *sequencer {
	return &sequencer{next: start, end: end, first: true, strict: strict}
}

func (s *sequencer) finished() bool {
	return s.end > 0 && s.next >= s.end
}

func (s *sequencer) accept(batch []*ReaderOutput) []*ReaderOutput {
	sort.Slice(batch, func(i, j int) bool {
		return batch[i].Sequence() < batch[j].Sequence()
	})

	accepted := []*ReaderOutput{}
	for _, item := range batch {
		seq := item.Sequence()
		if s.finished() {
			break
		}
		if s.first && !s.strict && seq > s.next {
			s.next = seq
		}
		if seq != s.next {
			continue
		}
		s.first = false
		accepted = append(accepted, item)
		s.next++
	}
	return accepted
}
