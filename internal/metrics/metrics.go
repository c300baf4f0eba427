// Package metrics mirrors the engine's statistics aggregator (spec §2
// "Statistics aggregator", §6 stats body) as Prometheus collectors, grounded
// on nimburion's pkg/observability/metrics registry: a pull-based Collector
// that reads an engine.Snapshot on every scrape rather than duplicating
// counters that the engine already owns under its own lock.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/workstalk/workstalk/internal/engine"
	logpkg "github.com/workstalk/workstalk/pkg/log"
)

var (
	currentDesc = prometheus.NewDesc(
		"workstalk_jobs_current", "Current number of jobs by state.",
		[]string{"state"}, nil,
	)
	connDesc = prometheus.NewDesc(
		"workstalk_connections_current", "Current number of connections by role.",
		[]string{"role"}, nil,
	)
	cmdDesc = prometheus.NewDesc(
		"workstalk_commands_total", "Lifetime count of dispatched commands by name.",
		[]string{"command"}, nil,
	)
	timeoutDesc = prometheus.NewDesc(
		"workstalk_reservation_timeouts_total", "Lifetime count of TTR expirations.",
		nil, nil,
	)
	jobsCreatedDesc = prometheus.NewDesc(
		"workstalk_jobs_created_total", "Lifetime count of jobs accepted by put.",
		nil, nil,
	)
	jobsDeletedDesc = prometheus.NewDesc(
		"workstalk_jobs_deleted_total", "Lifetime count of jobs destroyed by delete.",
		nil, nil,
	)
)

// Collector adapts an *engine.Engine into a prometheus.Collector. It holds
// no state of its own beyond the engine reference — Collect always reflects
// the engine's statistics aggregator as of the scrape.
type Collector struct {
	eng *engine.Engine
}

// NewCollector wraps eng for Prometheus scraping.
func NewCollector(eng *engine.Engine) *Collector {
	return &Collector{eng: eng}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- currentDesc
	ch <- connDesc
	ch <- cmdDesc
	ch <- timeoutDesc
	ch <- jobsCreatedDesc
	ch <- jobsDeletedDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.eng.Snapshot()

	ch <- prometheus.MustNewConstMetric(currentDesc, prometheus.GaugeValue, float64(s.Ready), "ready")
	ch <- prometheus.MustNewConstMetric(currentDesc, prometheus.GaugeValue, float64(s.Reserved), "reserved")
	ch <- prometheus.MustNewConstMetric(currentDesc, prometheus.GaugeValue, float64(s.Delayed), "delayed")
	ch <- prometheus.MustNewConstMetric(currentDesc, prometheus.GaugeValue, float64(s.Buried), "buried")
	ch <- prometheus.MustNewConstMetric(currentDesc, prometheus.GaugeValue, float64(s.Urgent), "urgent")

	ch <- prometheus.MustNewConstMetric(connDesc, prometheus.GaugeValue, float64(s.Connections), "total")
	ch <- prometheus.MustNewConstMetric(connDesc, prometheus.GaugeValue, float64(s.Producers), "producer")
	ch <- prometheus.MustNewConstMetric(connDesc, prometheus.GaugeValue, float64(s.Workers), "worker")
	ch <- prometheus.MustNewConstMetric(connDesc, prometheus.GaugeValue, float64(s.Waiting), "waiting")

	ch <- prometheus.MustNewConstMetric(cmdDesc, prometheus.CounterValue, float64(s.PutCt), "put")
	ch <- prometheus.MustNewConstMetric(cmdDesc, prometheus.CounterValue, float64(s.PeekCt), "peek")
	ch <- prometheus.MustNewConstMetric(cmdDesc, prometheus.CounterValue, float64(s.ReserveCt), "reserve")
	ch <- prometheus.MustNewConstMetric(cmdDesc, prometheus.CounterValue, float64(s.DeleteCt), "delete")
	ch <- prometheus.MustNewConstMetric(cmdDesc, prometheus.CounterValue, float64(s.ReleaseCt), "release")
	ch <- prometheus.MustNewConstMetric(cmdDesc, prometheus.CounterValue, float64(s.BuryCt), "bury")
	ch <- prometheus.MustNewConstMetric(cmdDesc, prometheus.CounterValue, float64(s.KickCt), "kick")
	ch <- prometheus.MustNewConstMetric(cmdDesc, prometheus.CounterValue, float64(s.StatsCt), "stats")

	ch <- prometheus.MustNewConstMetric(timeoutDesc, prometheus.CounterValue, float64(s.TimeoutCt))
	ch <- prometheus.MustNewConstMetric(jobsCreatedDesc, prometheus.CounterValue, float64(s.TotalCreated))
	ch <- prometheus.MustNewConstMetric(jobsDeletedDesc, prometheus.CounterValue, float64(s.TotalDeleted))
}

// Server exposes the collector on an HTTP /metrics endpoint, alongside the
// standard Go runtime and process collectors — the same default bundle
// nimburion's Registry registers.
type Server struct {
	httpSrv *http.Server
	logger  logpkg.Logger
}

// NewServer builds a metrics HTTP server bound to addr once started. It is
// only constructed when config.Config.MetricsAddr is non-empty.
func NewServer(eng *engine.Engine, addr string, logger logpkg.Logger) *Server {
	if logger == nil {
		logger = logpkg.NewTestLogger()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(eng))
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &Server{
		httpSrv: &http.Server{Addr: addr, Handler: mux},
		logger:  logger.WithComponent("metrics"),
	}
}

// ListenAndServe blocks serving /metrics until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.httpSrv.ListenAndServe() }()

	s.logger.Info("metrics listening", logpkg.Str("addr", s.httpSrv.Addr))

	select {
	case <-ctx.Done():
		return s.httpSrv.Close()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
