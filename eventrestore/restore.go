// Package eventrestore republishes archived raw events into a stream.
package eventrestore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/aurora-is-near/stream-events/eventbackup/chunks"
	"github.com/aurora-is-near/stream-events/eventbackup/record"
	"github.com/aurora-is-near/stream-events/stream"
	"github.com/aurora-is-near/stream-events/util"
)

// HeaderRestoredSeq carries the archived sequence of a republished message.
const HeaderRestoredSeq = "Restored-Seq"

const logInterval = 5 * time.Second

type EventRestore struct {
	Chunks *chunks.Chunks
	Stream *stream.Opts

	StartSeq uint64
	// EndSeq (exclusive) stops the restore; 0 restores every chunk.
	EndSeq uint64

	MaxWriteAttempts uint
	WriteRetryWaitMs uint

	connect func(opts *stream.Opts) (stream.Interface, func(), error)
}

func (er *EventRestore) FillMissingFields() {
	if er.MaxWriteAttempts == 0 {
		er.MaxWriteAttempts = 3
	}
	if er.WriteRetryWaitMs == 0 {
		er.WriteRetryWaitMs = 3000
	}
	if er.connect == nil {
		er.connect = func(opts *stream.Opts) (stream.Interface, func(), error) {
			s, err := stream.ConnectStream(opts)
			if err != nil {
				return nil, nil, err
			}
			return s, func() { s.Disconnect() }, nil
		}
	}
}

// Run republishes [StartSeq, EndSeq) after the last restored message.
// It returns nil when the archive is exhausted or ctx is cancelled.
func (er *EventRestore) Run(ctx context.Context) error {
	er.FillMissingFields()

	if err := er.Chunks.Open(); err != nil {
		return fmt.Errorf("unable to open backup: %w", err)
	}
	defer er.Chunks.CloseReader()

	output, disconnect, err := er.connect(er.Stream)
	if err != nil {
		return fmt.Errorf("unable to connect to output stream: %w", err)
	}
	defer disconnect()

	seq, err := resumeSeq(output, util.Max(er.StartSeq, 1))
	if err != nil {
		return err
	}
	zap.S().Infof("Restore: starting from archived seq=%d", seq)

	if err := er.Chunks.SeekReader(seq); err != nil {
		if errors.Is(err, chunks.ErrNotFound) {
			zap.S().Infof("Restore: nothing to restore")
			return nil
		}
		return fmt.Errorf("can't seek reader to pos %v: %w", seq, err)
	}

	lastLogTime := time.Now()
	restored := 0
	for ctx.Err() == nil {
		seq, data, err := er.Chunks.ReadNext()
		if errors.Is(err, chunks.ErrNotFound) {
			zap.S().Infof("Restore: no more messages found, finishing")
			return nil
		}
		if err != nil {
			return fmt.Errorf("can't read next msg from chunks: %w", err)
		}
		if er.EndSeq > 0 && seq >= er.EndSeq {
			zap.S().Infof("Restore: reached end seq %d", er.EndSeq)
			return nil
		}

		rec, err := record.Unmarshal(data)
		if err != nil {
			return fmt.Errorf("can't parse record on seq %v: %w", seq, err)
		}
		if err := er.write(ctx, output, seq, rec); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			return err
		}

		restored++
		if now := time.Now(); now.Sub(lastLogTime) >= logInterval {
			zap.S().Infof("Restore: restored %d messages, last seq=%d", restored, seq)
			lastLogTime = now
		}
	}
	zap.S().Infof("Restore: interrupted after %d messages", restored)
	return nil
}

func (er *EventRestore) write(ctx context.Context, output stream.Interface, seq uint64, rec *record.Record) error {
	header := make(nats.Header, len(rec.Header)+1)
	for key, values := range rec.Header {
		header[key] = append([]string{}, values...)
	}
	seqStr := strconv.FormatUint(seq, 10)
	header.Set(HeaderRestoredSeq, seqStr)

	for attempt := uint(1); ; attempt++ {
		_, err := output.Write(rec.Data, header, "restore-"+seqStr)
		if err == nil {
			return nil
		}
		if attempt >= er.MaxWriteAttempts {
			return fmt.Errorf("unable to write seq=%d after %d attempts: %w", seq, attempt, err)
		}
		zap.S().Warnf("Restore: unable to write seq=%d (attempt %d/%d): %v", seq, attempt, er.MaxWriteAttempts, err)
		if !util.CtxSleep(ctx, time.Duration(er.WriteRetryWaitMs)*time.Millisecond) {
			return ctx.Err()
		}
	}
}

// resumeSeq returns the archived sequence following the last restored one.
// Messages without the restore header mean the stream was not built by a
// restore and nothing is resumed.
func resumeSeq(output stream.Interface, startSeq uint64) (uint64, error) {
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
	value := last.Header.Get(HeaderRestoredSeq)
	if len(value) == 0 {
		return 0, fmt.Errorf("last output message (seq=%d) has no '%s' header", info.State.LastSeq, HeaderRestoredSeq)
	}
	restored, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unable to parse '%s' header '%s': %w", HeaderRestoredSeq, value, err)
	}
	return util.Max(restored+1, startSeq), nil
}
