// Package eventbackup archives the raw event stream into local chunk files.
package eventbackup

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/aurora-is-near/stream-events/eventbackup/chunks"
	"github.com/aurora-is-near/stream-events/eventbackup/record"
	"github.com/aurora-is-near/stream-events/stream"
	"github.com/aurora-is-near/stream-events/util"
)

const progressLogInterval = 10000

type EventBackup struct {
	Chunks *chunks.Chunks
	// Reader is used as a template: a copy is started for every absent range.
	Reader *stream.AutoReader

	StartSeq uint64
	// EndSeq is inclusive; 0 keeps following the stream.
	EndSeq uint64

	newSource func(startSeq uint64, endSeq uint64) stream.Source
}

func (eb *EventBackup) startAutoReader(startSeq uint64, endSeq uint64) stream.Source {
	ar := &stream.AutoReader{
		Stream:          eb.Reader.Stream,
		Reader:          eb.Reader.Reader,
		StartSeq:        startSeq,
		EndSeq:          endSeq,
		ReconnectWaitMs: eb.Reader.ReconnectWaitMs,
	}
	ar.Start()
	return ar
}

// Run archives every range of [StartSeq, EndSeq] that is not stored yet.
// It returns nil when everything is archived or ctx is cancelled.
func (eb *EventBackup) Run(ctx context.Context) error {
	if eb.newSource == nil {
		eb.newSource = eb.startAutoReader
	}
	if err := eb.Chunks.Open(); err != nil {
		return fmt.Errorf("unable to open chunks: %w", err)
	}
	defer func() {
		if err := eb.Chunks.Close(); err != nil {
			zap.S().Errorf("Backup: unable to close chunks: %v", err)
		}
	}()

	last := eb.EndSeq
	if last == 0 {
		last = math.MaxUint64 - 1
	}
	from := util.Max(eb.StartSeq, 1)
	for from <= last {
		l, r, err := eb.Chunks.GetLeftmostAbsentRange(from, last)
		if errors.Is(err, chunks.ErrNotFound) {
			break
		}
		if err != nil {
			return err
		}

		readerEnd := r + 1
		if r == math.MaxUint64-1 {
			readerEnd = 0
		}
		zap.S().Infof("Backup: archiving [%d, %d]...", l, r)
		if err := eb.archive(ctx, l, readerEnd); err != nil {
			if errors.Is(err, context.Canceled) {
				zap.S().Infof("Backup: interrupted")
				return nil
			}
			return err
		}
		if err := eb.Chunks.Flush(); err != nil {
			return fmt.Errorf("unable to flush chunk: %w", err)
		}
		from = r + 1
	}

	zap.S().Infof("Backup: everything is archived")
	return nil
}

func (eb *EventBackup) archive(ctx context.Context, startSeq uint64, endSeq uint64) error {
	src := eb.newSource(startSeq, endSeq)
	defer src.Stop()

	count := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out, ok := <-src.Output():
			if !ok {
				zap.S().Infof("Backup: archived %d messages starting from %d", count, startSeq)
				return nil
			}
			if out.Error != nil {
				return out.Error
			}
			rec := &record.Record{
				Sequence:  out.Sequence(),
				Header:    out.Msg.Header,
				Data:      out.Msg.Data,
				Timestamp: out.Metadata.Timestamp,
			}
			if err := eb.Chunks.Write(rec.Sequence, rec.Marshal()); err != nil {
				return fmt.Errorf("unable to write seq=%d: %w", rec.Sequence, err)
			}
			count++
			if count%progressLogInterval == 0 {
				zap.S().Infof("Backup: archived up to seq=%d", rec.Sequence)
			}
		}
	}
}
