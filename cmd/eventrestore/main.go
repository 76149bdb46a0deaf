package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aurora-is-near/stream-events/eventbackup/chunks"
	"github.com/aurora-is-near/stream-events/eventrestore"
	"github.com/aurora-is-near/stream-events/logging"
	"github.com/aurora-is-near/stream-events/stream"
	"github.com/aurora-is-near/stream-events/transport"
)

var (
	server     = flag.String("server", "", "NATS server URL")
	creds      = flag.String("creds", "", "path to NATS credentials file")
	streamName = flag.String("stream", "", "output stream name")
	seqStart   = flag.Uint64("seq-start", 1, "first archived sequence to restore")
	seqEnd     = flag.Uint64("seq-end", 0, "archived sequence to stop at, exclusive (0 = restore everything)")
	dir        = flag.String("dir", "backup", "backup dir")
	backup     = flag.String("backup", "", "(chunks prefix before underscore)")
	logLevel   = flag.String("log-level", "info", "log level")
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
	if len(*backup) == 0 {
		return fmt.Errorf("-backup must be specified")
	}

	logConfig := logging.DefaultConfig()
	logConfig.Level = *logLevel
	logger, err := logging.Setup(logConfig)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	er := &eventrestore.EventRestore{
		Chunks: &chunks.Chunks{
			Dir:             *dir,
			ChunkNamePrefix: *backup + "_",
		},
		Stream: &stream.Opts{
			Nats: &transport.NatsConnectionConfig{
				Endpoints: []string{*server},
				Creds:     *creds,
				LogTag:    "restore",
				Name:      "eventrestore",
			},
			Stream: *streamName,
		},
		StartSeq:         *seqStart,
		EndSeq:           *seqEnd,
		MaxWriteAttempts: 3,
		WriteRetryWaitMs: 3_000,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGABRT, syscall.SIGINT)
	defer stop()
	return er.Run(ctx)
}
