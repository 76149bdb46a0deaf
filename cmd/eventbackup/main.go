package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aurora-is-near/stream-events/eventbackup"
	"github.com/aurora-is-near/stream-events/eventbackup/chunks"
	"github.com/aurora-is-near/stream-events/logging"
	"github.com/aurora-is-near/stream-events/stream"
	"github.com/aurora-is-near/stream-events/transport"
)

var (
	server          = flag.String("server", "", "NATS server URL")
	creds           = flag.String("creds", "", "path to NATS credentials file")
	consumer        = flag.String("consumer", "", "NATS JetStream durable consumer name")
	streamName      = flag.String("stream", "", "stream name")
	seqStart        = flag.Uint64("seq-start", 1, "start sequence on stream")
	seqEnd          = flag.Uint64("seq-end", 0, "last sequence on stream to archive (0 = follow)")
	batchSize       = flag.Uint("batch", 500, "max request batch size")
	rps             = flag.Float64("rps", 1, "max requests per second")
	dir             = flag.String("dir", "backup", "output dir")
	compress        = flag.Int("compress", 9, "compression level [0-9]")
	maxChunkEntries = flag.Int("max-chunk-entries", 1_000_000, "max entries per chunk")
	maxChunkSize    = flag.Int("max-chunk-size", 1024, "max chunk size in megabytes (before compression)")
	logLevel        = flag.String("log-level", "info", "log level")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(*server) == 0 {
		return fmt.Errorf("-server must be specified")
	}
	if len(*streamName) == 0 {
		return fmt.Errorf("-stream must be specified")
	}

	logConfig := logging.DefaultConfig()
	logConfig.Level = *logLevel
	logger, err := logging.Setup(logConfig)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	eb := &eventbackup.EventBackup{
		Chunks: &chunks.Chunks{
			Dir:                *dir,
			ChunkNamePrefix:    *streamName + "_",
			CompressionLevel:   *compress,
			MaxEntriesPerChunk: *maxChunkEntries,
			MaxChunkSize:       *maxChunkSize * 1024 * 1024,
		},
		Reader: &stream.AutoReader{
			Stream: &stream.Opts{
				Nats: &transport.NatsConnectionConfig{
					Endpoints: []string{*server},
					Creds:     *creds,
					LogTag:    "backup",
				},
				Stream: *streamName,
			},
			Reader: &stream.ReaderOpts{
				MaxRps:              *rps,
				BufferSize:          1000,
				MaxRequestBatchSize: *batchSize,
				Durable:             *consumer,
				StrictStart:         true,
			},
			ReconnectWaitMs: 2000,
		},
		StartSeq: *seqStart,
		EndSeq:   *seqEnd,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGABRT, syscall.SIGINT)
	defer stop()
	return eb.Run(ctx)
}
