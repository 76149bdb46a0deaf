package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	_metrics "github.com/aurora-is-near/stream-events/metrics"
	"github.com/aurora-is-near/stream-events/eventbridge"
	"github.com/aurora-is-near/stream-events/eventbridge/metrics"
	"github.com/aurora-is-near/stream-events/logging"
	"github.com/aurora-is-near/stream-events/stream"
	"github.com/aurora-is-near/stream-events/transport"
)

const envPrefix = "EVENTBRIDGE"

type Config struct {
	Log    logging.Config
	Bridge *eventbridge.EventBridge
}

func streamOpts(endpoint string, streamName string, logTag string) *stream.Opts {
	return &stream.Opts{
		Nats: &transport.NatsConnectionConfig{
			Endpoints:           []string{endpoint},
			Creds:               "nats.creds",
			TimeoutMs:           10000,
			PingIntervalMs:      600000,
			MaxPingsOutstanding: 5,
			LogTag:              logTag,
		},
		Stream:           streamName,
		Subject:          streamName,
		RequestWaitMs:    5000,
		PublishAckWaitMs: 5000,
	}
}

func defaultConfig() *Config {
	return &Config{
		Log: logging.DefaultConfig(),
		Bridge: &eventbridge.EventBridge{
			Input:  streamOpts("tls://input.dev:4222", "program_events", "input"),
			Output: streamOpts("tls://output.dev:4222", "decoded_events", "output"),
			Reader: &stream.ReaderOpts{
				MaxRps:                       2,
				Burst:                        2,
				BufferSize:                   1000,
				MaxRequestBatchSize:          500,
				FetchTimeoutMs:               10000,
				LastSeqUpdateIntervalSeconds: 5,
				Durable:                      "eventbridge",
				MaxSilenceSeconds:            60,
			},
			Workers:         8,
			RestartDelayMs:  2000,
			ReconnectWaitMs: 1000,
			MaxPushAttempts: 3,
			PushRetryWaitMs: 1000,
			Metrics: &metrics.Metrics{
				Server: _metrics.Server{
					ListenAddress: "localhost:9991",
					Namespace:     "infra",
					Subsystem:     "event_bridge",
				},
				Labels: map[string]string{
					"inputcluster":  "X",
					"outputcluster": "Y",
				},
			},
		},
	}
}

// loadConfig reads a JSON or YAML config file. Keys present in the file can
// be overridden from the environment, e.g. EVENTBRIDGE_BRIDGE_WORKERS=16.
func loadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("unable to read config file: %w", err)
	}

	config := &Config{Log: logging.DefaultConfig()}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to parse config file: %w", err)
	}
	if config.Bridge == nil {
		return nil, fmt.Errorf("config has no 'Bridge' section")
	}
	if config.Bridge.Input == nil || config.Bridge.Output == nil {
		return nil, fmt.Errorf("both 'Bridge.Input' and 'Bridge.Output' must be specified")
	}
	config.Log.FillMissingFields()
	return config, nil
}
