package eventbridge

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aurora-is-near/stream-events/catalog"
	"github.com/aurora-is-near/stream-events/eventbridge/metrics"
	"github.com/aurora-is-near/stream-events/stream"
)

// EventBridge reads raw program events from the input stream, decodes them
// and publishes one DecodedEvent document per input message.
type EventBridge struct {
	Input  *stream.Opts
	Output *stream.Opts
	Reader *stream.ReaderOpts

	// StartSeq is used when the output stream holds nothing to resume from.
	StartSeq uint64
	// EndSeq (exclusive) stops the bridge once reached; 0 means never.
	EndSeq uint64

	Workers          int
	RestartDelayMs   uint
	ReconnectWaitMs  uint
	MaxPushAttempts  uint
	PushRetryWaitMs  uint
	SkipDecodeErrors bool

	Metrics *metrics.Metrics

	catalog *catalog.Catalog
}

func (eb *EventBridge) FillMissingFields() {
	if eb.RestartDelayMs == 0 {
		eb.RestartDelayMs = 2000
	}
	if eb.ReconnectWaitMs == 0 {
		eb.ReconnectWaitMs = 1000
	}
	if eb.MaxPushAttempts == 0 {
		eb.MaxPushAttempts = 3
	}
	if eb.PushRetryWaitMs == 0 {
		eb.PushRetryWaitMs = 1000
	}
	if eb.Reader == nil {
		eb.Reader = &stream.ReaderOpts{}
	}
	if eb.Metrics == nil {
		eb.Metrics = &metrics.Metrics{}
	}
	if eb.catalog == nil {
		eb.catalog = catalog.Default()
	}
}

func (eb *EventBridge) Run() error {
	eb.FillMissingFields()

	if err := eb.Metrics.Start(); err != nil {
		return err
	}
	defer eb.Metrics.Stop()

	interrupt := make(chan os.Signal, 10)
	signal.Notify(interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGABRT, syscall.SIGINT)
	defer signal.Stop(interrupt)

	for {
		sync := StartSync(eb)
		select {
		case <-interrupt:
			zap.S().Infof("Bridge: interrupted, stopping...")
			sync.Stop()
			return nil
		case err := <-eb.Metrics.Closed():
			sync.Stop()
			return err
		case stopReason := <-sync.Stopped():
			if !stopReason.Recoverable {
				return stopReason.Error
			}
			zap.S().Warnf("Bridge: sync stopped: %v, restarting in %vms...", stopReason.Error, eb.RestartDelayMs)
		}

		timer := time.NewTimer(time.Duration(eb.RestartDelayMs) * time.Millisecond)
		select {
		case <-interrupt:
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}
