package transport

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type NatsConnectionConfig struct {
	Endpoints           []string
	Creds               string `json:",omitempty"`
	TimeoutMs           uint
	PingIntervalMs      uint
	MaxPingsOutstanding int
	LogTag              string
	Name                string `json:",omitempty"`
}

type NatsConnection struct {
	config *NatsConnectionConfig
	conn   *nats.Conn
}

func (config NatsConnectionConfig) FillMissingFields() *NatsConnectionConfig {
	if config.TimeoutMs == 0 {
		config.TimeoutMs = 10000
	}
	if config.PingIntervalMs == 0 {
		config.PingIntervalMs = 600000
	}
	if config.MaxPingsOutstanding == 0 {
		config.MaxPingsOutstanding = 5
	}
	return &config
}

// Options renders the config as nats connect options. errorChan, if set,
// receives asynchronous connection errors (non-blocking).
func (config *NatsConnectionConfig) Options(errorChan chan<- error) []nats.Option {
	c := config.FillMissingFields()
	logf := func(format string, v ...any) {
		zap.S().Infof(fmt.Sprintf("NATS [%s]: ", c.LogTag)+format, v...)
	}
	report := func(err error) {
		if errorChan == nil || err == nil {
			return
		}
		select {
		case errorChan <- err:
		default:
		}
	}

	opts := []nats.Option{
		nats.Timeout(time.Duration(c.TimeoutMs) * time.Millisecond),
		nats.PingInterval(time.Duration(c.PingIntervalMs) * time.Millisecond),
		nats.MaxPingsOutstanding(c.MaxPingsOutstanding),
		nats.MaxReconnects(-1),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			if sub != nil {
				logf("error on subscription '%s': %v", sub.Subject, err)
			} else {
				logf("error: %v", err)
			}
			report(err)
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logf("disconnected: %v", err)
			report(err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logf("reconnected to %s", nc.ConnectedUrlRedacted())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logf("connection closed")
		}),
	}
	if len(c.Creds) > 0 {
		opts = append(opts, nats.UserCredentials(c.Creds))
	}
	if len(c.Name) > 0 {
		opts = append(opts, nats.Name(c.Name))
	}
	return opts
}

func ConnectNATS(config *NatsConnectionConfig, errorChan chan<- error) (*NatsConnection, error) {
	if config == nil {
		return nil, errors.New("no NATS connection config")
	}
	if len(config.Endpoints) == 0 {
		return nil, fmt.Errorf("NATS [%s]: no endpoints", config.LogTag)
	}

	zap.S().Infof("NATS [%s]: connecting to %s...", config.LogTag, strings.Join(config.Endpoints, ", "))
	conn, err := nats.Connect(strings.Join(config.Endpoints, ","), config.Options(errorChan)...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS [%s]: %w", config.LogTag, err)
	}
	zap.S().Infof("NATS [%s]: connected to %s", config.LogTag, conn.ConnectedUrlRedacted())

	return &NatsConnection{
		config: config,
		conn:   conn,
	}, nil
}

func (nc *NatsConnection) Conn() *nats.Conn {
	return nc.conn
}

func (nc *NatsConnection) Drain() error {
	zap.S().Infof("NATS [%s]: draining...", nc.config.LogTag)
	return nc.conn.Drain()
}
