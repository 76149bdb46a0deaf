package eventbridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurora-is-near/stream-events/catalog"
	"github.com/aurora-is-near/stream-events/eventbridge/metrics"
	"github.com/aurora-is-near/stream-events/events"
	"github.com/aurora-is-near/stream-events/programs/pumpfun"
	"github.com/aurora-is-near/stream-events/stream"
	"github.com/aurora-is-near/stream-events/types"
)

type fakeOutput struct {
	mu         sync.Mutex
	msgs       []*nats.RawStreamMsg
	ids        map[string]uint64
	failWrites int
}

func (o *fakeOutput) GetInfo(time.Duration) (*nats.StreamInfo, time.Time, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return &nats.StreamInfo{State: nats.StreamState{LastSeq: uint64(len(o.msgs))}}, time.Now(), nil
}

func (o *fakeOutput) Get(seq uint64) (*nats.RawStreamMsg, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if seq == 0 || seq > uint64(len(o.msgs)) {
		return nil, errors.New("message not found")
	}
	return o.msgs[seq-1], nil
}

func (o *fakeOutput) Write(data []byte, header nats.Header, msgId string) (*nats.PubAck, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failWrites > 0 {
		o.failWrites--
		return nil, nats.ErrTimeout
	}
	if o.ids == nil {
		o.ids = map[string]uint64{}
	}
	if seq, ok := o.ids[msgId]; ok {
		return &nats.PubAck{Stream: "decoded", Sequence: seq, Duplicate: true}, nil
	}
	seq := uint64(len(o.msgs) + 1)
	o.msgs = append(o.msgs, &nats.RawStreamMsg{Sequence: seq, Header: header, Data: data})
	o.ids[msgId] = seq
	return &nats.PubAck{Stream: "decoded", Sequence: seq}, nil
}

func newBridge(t *testing.T) *EventBridge {
	eb := &EventBridge{
		Workers:         4,
		MaxPushAttempts: 3,
		PushRetryWaitMs: 1,
		Metrics:         &metrics.Metrics{},
	}
	eb.FillMissingFields()
	require.NoError(t, eb.Metrics.Start())
	t.Cleanup(eb.Metrics.Stop)
	return eb
}

func input(seq uint64, program types.Pubkey, data []byte) *stream.ReaderOutput {
	msg := &types.EventMessage{ProgramID: program, Slot: 1000 + seq, Signature: "sig" + strconv.FormatUint(seq, 10)}
	return &stream.ReaderOutput{
		Msg:      &nats.Msg{Header: nats.Header(msg.Header()), Data: data},
		Metadata: &nats.MsgMetadata{Sequence: nats.SequencePair{Stream: seq}},
	}
}

func feed(items ...*stream.ReaderOutput) <-chan *stream.ReaderOutput {
	ch := make(chan *stream.ReaderOutput, len(items))
	for _, item := range items {
		ch <- item
	}
	close(ch)
	return ch
}

func trade(t *testing.T, sol uint64) []byte {
	data, err := events.Encode(pumpfun.Registry(), &pumpfun.TradeEvent{SolAmount: sol, IsBuy: true})
	require.NoError(t, err)
	return data
}

func counterValue(families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	nextMetric:
		for _, m := range f.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue nextMetric
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestResumeSeq(t *testing.T) {
	out := &fakeOutput{}
	seq, err := resumeSeq(out, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)

	seq, err = resumeSeq(out, 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), seq)

	header := nats.Header{}
	header.Set(types.HeaderInputSeq, "41")
	_, err = out.Write([]byte{1}, header, "41")
	require.NoError(t, err)

	seq, err = resumeSeq(out, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), seq)

	seq, err = resumeSeq(out, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), seq)

	_, err = out.Write([]byte{2}, nats.Header{}, "x")
	require.NoError(t, err)
	_, err = resumeSeq(out, 1)
	assert.ErrorIs(t, err, errFatal)
	assert.False(t, stopReason(err).Recoverable)
}

func TestPump(t *testing.T) {
	eb := newBridge(t)
	eb.SkipDecodeErrors = true
	out := &fakeOutput{}

	unknownTag := append([]byte{9, 9, 9, 9, 9, 9, 9, 9}, 0xff)
	err := eb.pump(context.Background(), feed(
		input(1, pumpfun.ProgramID, trade(t, 5)),
		input(2, pumpfun.ProgramID, unknownTag),
		input(3, types.Pubkey{42}, trade(t, 6)),
		input(4, pumpfun.ProgramID, []byte{1, 2, 3}),
		input(5, pumpfun.ProgramID, trade(t, 7)),
	), out)
	require.NoError(t, err)

	require.Len(t, out.msgs, 3)
	expectedInputs := []uint64{1, 2, 5}
	for i, raw := range out.msgs {
		assert.Equal(t, fmt.Sprint(expectedInputs[i]), raw.Header.Get(types.HeaderInputSeq))
		doc, err := types.DecodeDecodedEvent(raw.Data)
		require.NoError(t, err)
		assert.Equal(t, expectedInputs[i], doc.Sequence)
		assert.Equal(t, 1000+expectedInputs[i], doc.Slot)
		assert.Equal(t, pumpfun.ProgramID, doc.Program)
	}

	doc, err := types.DecodeDecodedEvent(out.msgs[1].Data)
	require.NoError(t, err)
	assert.True(t, doc.Unknown)
	assert.Equal(t, []byte{0xff}, doc.Payload)

	m := eb.Metrics
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DecodedEvents.WithLabelValues(pumpfun.Name, "TradeEvent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnknownEvents.WithLabelValues(pumpfun.Name)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SkipsCount))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.InputStreamSequenceNumber))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.OutputStreamSequenceNumber))

	families, err := m.Server.Gather()
	require.NoError(t, err)
	assert.Equal(t, 1.0, counterValue(families, "decode_errors_count", map[string]string{
		"program": pumpfun.Name,
		"kind":    events.KindTruncatedDiscriminator.String(),
	}))
}

func TestPumpIsIdempotent(t *testing.T) {
	eb := newBridge(t)
	out := &fakeOutput{}
	items := func() <-chan *stream.ReaderOutput {
		return feed(input(1, pumpfun.ProgramID, trade(t, 1)), input(2, pumpfun.ProgramID, trade(t, 2)))
	}
	require.NoError(t, eb.pump(context.Background(), items(), out))
	require.NoError(t, eb.pump(context.Background(), items(), out))
	assert.Len(t, out.msgs, 2)
}

func TestPumpStopsOnDecodeError(t *testing.T) {
	eb := newBridge(t)
	out := &fakeOutput{}
	err := eb.pump(context.Background(), feed(
		input(1, pumpfun.ProgramID, trade(t, 1)),
		input(2, pumpfun.ProgramID, trade(t, 2)[:20]),
		input(3, pumpfun.ProgramID, trade(t, 3)),
	), out)
	require.Error(t, err)
	assert.ErrorIs(t, err, errFatal)
	assert.Contains(t, err.Error(), "seq=2")
	assert.False(t, stopReason(err).Recoverable)
	assert.Len(t, out.msgs, 1)
}

func TestPumpRetriesPublish(t *testing.T) {
	eb := newBridge(t)
	out := &fakeOutput{failWrites: 2}
	require.NoError(t, eb.pump(context.Background(), feed(input(1, pumpfun.ProgramID, trade(t, 1))), out))
	assert.Len(t, out.msgs, 1)
	assert.Equal(t, 2.0, testutil.ToFloat64(eb.Metrics.PublishRetries))

	out = &fakeOutput{failWrites: 5}
	err := eb.pump(context.Background(), feed(input(1, pumpfun.ProgramID, trade(t, 1))), out)
	require.Error(t, err)
	assert.ErrorIs(t, err, nats.ErrTimeout)
	assert.True(t, stopReason(err).Recoverable)
}

func TestFillMissingFields(t *testing.T) {
	eb := &EventBridge{}
	eb.FillMissingFields()
	assert.Equal(t, uint(3), eb.MaxPushAttempts)
	assert.NotNil(t, eb.Reader)
	assert.NotNil(t, eb.Metrics)
	assert.Equal(t, catalog.Default().Programs(), eb.catalog.Programs())
}
