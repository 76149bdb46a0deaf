package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/aurora-is-near/stream-events/eventbackup/chunks"
	"github.com/aurora-is-near/stream-events/eventreplay"
	"github.com/aurora-is-near/stream-events/logging"
)

var (
	backupPath    = flag.String("backup", "", "path to backup (dir + prefix)")
	statePath     = flag.String("state", "", "path to state file, enables resuming")
	seqStart      = flag.Uint64("seq-start", 1, "start sequence on stream")
	seqEnd        = flag.Uint64("seq-end", 0, "end sequence on stream, exclusive (0 = until the last chunk)")
	workers       = flag.Int("workers", 0, "number of decoders (0 = GOMAXPROCS)")
	ignoreSeqGaps = flag.Bool("ignore-seq-gaps", false, "ignore sequence gaps")
	logLevel      = flag.String("log-level", "info", "log level")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "finished with error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if *backupPath == "" {
		return fmt.Errorf("-backup flag must be provided")
	}

	logConfig := logging.DefaultConfig()
	logConfig.Level = *logLevel
	logger, err := logging.Setup(logConfig)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	r := &eventreplay.Replay{
		Chunks: &chunks.Chunks{
			Dir:             filepath.Dir(*backupPath),
			ChunkNamePrefix: filepath.Base(*backupPath),
		},
		StartSeq:      *seqStart,
		EndSeq:        *seqEnd,
		Workers:       *workers,
		IgnoreSeqGaps: *ignoreSeqGaps,
		StatePath:     *statePath,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGABRT, syscall.SIGINT)
	defer stop()

	state, err := r.Run(ctx)
	if state != nil {
		state.Render(os.Stdout)
	}
	return err
}
