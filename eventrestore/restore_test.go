package eventrestore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurora-is-near/stream-events/eventbackup/chunks"
	"github.com/aurora-is-near/stream-events/eventbackup/record"
	"github.com/aurora-is-near/stream-events/stream"
)

type fakeOutput struct {
	mu         sync.Mutex
	msgs       []*nats.RawStreamMsg
	ids        map[string]bool
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
		o.ids = map[string]bool{}
	}
	if o.ids[msgId] {
		return &nats.PubAck{Duplicate: true}, nil
	}
	o.ids[msgId] = true
	o.msgs = append(o.msgs, &nats.RawStreamMsg{Sequence: uint64(len(o.msgs) + 1), Header: header, Data: data})
	return &nats.PubAck{Sequence: uint64(len(o.msgs))}, nil
}

func writeArchive(t *testing.T, dir string, seqs ...uint64) {
	c := &chunks.Chunks{Dir: dir, ChunkNamePrefix: "events_", MaxEntriesPerChunk: 3}
	require.NoError(t, c.Open())
	for _, seq := range seqs {
		header := nats.Header{}
		header.Set("Slot", "7")
		rec := &record.Record{Sequence: seq, Header: header, Data: []byte{byte(seq)}}
		require.NoError(t, c.Write(seq, rec.Marshal()))
	}
	require.NoError(t, c.Close())
}

func newRestore(dir string, out *fakeOutput, startSeq, endSeq uint64) *EventRestore {
	return &EventRestore{
		Chunks:           &chunks.Chunks{Dir: dir, ChunkNamePrefix: "events_"},
		StartSeq:         startSeq,
		EndSeq:           endSeq,
		WriteRetryWaitMs: 1,
		connect: func(*stream.Opts) (stream.Interface, func(), error) {
			return out, func() {}, nil
		},
	}
}

func restoredSeqs(out *fakeOutput) []string {
	var seqs []string
	for _, msg := range out.msgs {
		seqs = append(seqs, msg.Header.Get(HeaderRestoredSeq))
	}
	return seqs
}

func TestRestore(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, dir, 1, 2, 3, 4, 5, 8, 9)

	out := &fakeOutput{}
	require.NoError(t, newRestore(dir, out, 2, 9).Run(context.Background()))
	assert.Equal(t, []string{"2", "3", "4", "5", "8"}, restoredSeqs(out))
	assert.Equal(t, "7", out.msgs[0].Header.Get("Slot"))
	assert.Equal(t, []byte{2}, out.msgs[0].Data)

	// resumes after the last restored message
	require.NoError(t, newRestore(dir, out, 0, 0).Run(context.Background()))
	assert.Equal(t, []string{"2", "3", "4", "5", "8", "9"}, restoredSeqs(out))

	require.NoError(t, newRestore(dir, out, 0, 0).Run(context.Background()))
	assert.Len(t, out.msgs, 6)
}

func TestRestoreRetriesWrites(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, dir, 1, 2)

	out := &fakeOutput{failWrites: 2}
	require.NoError(t, newRestore(dir, out, 0, 0).Run(context.Background()))
	assert.Len(t, out.msgs, 2)

	out = &fakeOutput{failWrites: 3}
	err := newRestore(dir, out, 0, 0).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, nats.ErrTimeout)
	assert.Contains(t, err.Error(), "seq=1")
}

func TestRestoreRejectsForeignStream(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, dir, 1)

	out := &fakeOutput{}
	_, err := out.Write([]byte{1}, nats.Header{}, "other")
	require.NoError(t, err)

	err = newRestore(dir, out, 0, 0).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), HeaderRestoredSeq)
}

func TestRestoreCancelled(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, dir, 1, 2, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := &fakeOutput{}
	require.NoError(t, newRestore(dir, out, 0, 0).Run(ctx))
	assert.Empty(t, out.msgs)
}
