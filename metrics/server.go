package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
)

// Server owns a private registry. Metrics are collected from Start on and
// served over HTTP only when ListenAddress is set.
type Server struct {
	ListenAddress string
	Namespace     string
	Subsystem     string

	collectors []prometheus.Collector
	registry   *prometheus.Registry
	httpServer *http.Server
	closed     chan error
	wg         sync.WaitGroup
}

func register[C prometheus.Collector](server *Server, c C) C {
	server.collectors = append(server.collectors, c)
	return c
}

func (server *Server) AddGauge(name string, help string, labelNames []string) *prometheus.GaugeVec {
	return register(server, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: server.Namespace,
		Subsystem: server.Subsystem,
		Name:      name,
		Help:      help,
	}, labelNames))
}

func (server *Server) AddCounter(name string, help string, labelNames []string) *prometheus.CounterVec {
	return register(server, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: server.Namespace,
		Subsystem: server.Subsystem,
		Name:      name,
		Help:      help,
	}, labelNames))
}

func (server *Server) AddHistogram(name string, help string, buckets []float64, labelNames []string) *prometheus.HistogramVec {
	return register(server, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: server.Namespace,
		Subsystem: server.Subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labelNames))
}

func (server *Server) Start() error {
	server.registry = prometheus.NewRegistry()
	for _, c := range server.collectors {
		if err := server.registry.Register(c); err != nil {
			return fmt.Errorf("unable to register metric: %w", err)
		}
	}
	server.closed = make(chan error, 1)

	if len(server.ListenAddress) == 0 {
		zap.S().Infof("Metrics Server: collecting %d metrics, not serving", len(server.collectors))
		return nil
	}

	zap.S().Infof("Metrics Server: serving %d metrics on %s", len(server.collectors), server.ListenAddress)
	server.httpServer = &http.Server{
		Addr: server.ListenAddress,
		Handler: promhttp.HandlerFor(server.registry, promhttp.HandlerOpts{
			ErrorLog: zap.NewStdLog(zap.L()),
		}),
	}
	server.wg.Add(1)
	go func() {
		defer server.wg.Done()
		err := server.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return
		}
		server.closed <- fmt.Errorf("metrics server failed: %w", err)
	}()
	return nil
}

// Gather snapshots the registry; nil before Start.
func (server *Server) Gather() ([]*dto.MetricFamily, error) {
	if server.registry == nil {
		return nil, nil
	}
	return server.registry.Gather()
}

// Closed yields an error if serving fails.
func (server *Server) Closed() <-chan error {
	return server.closed
}

func (server *Server) Stop() {
	if server.httpServer == nil {
		return
	}
	zap.S().Infof("Metrics Server: stopping...")
	if err := server.httpServer.Close(); err != nil {
		zap.S().Warnf("Metrics Server: unable to close: %v", err)
	}
	server.wg.Wait()
}
