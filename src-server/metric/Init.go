package metric

import (
	"errors"
	"log/slog"
	"time"

	"emailtoics/src-server/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Calendar documents handled, by operation (serialize, parse, validate,
// confirm) and result (ok, error).
var DocumentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "emailtoics_documents_total",
	Help: "The number of calendar documents handled, by operation and result",
}, []string{"op", "result"})

func CountDocument(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	DocumentsTotal.WithLabelValues(op, result).Inc()
}

// Register a gauge, or reuse the one already registered under the same name.
func registerGauge(name, help string) prometheus.Gauge {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	if err := prometheus.Register(gauge); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			slog.Error("can't register metric", "name", name, "error", err)
			return gauge
		}
		if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
			gauge = existing
		}
	}
	slog.Debug("metric registered", "name", name)
	gauge.Set(0)
	return gauge
}

func unregisterGauge(name string, gauge prometheus.Gauge) {
	switch prometheus.Unregister(gauge) {
	case true:
		slog.Debug("metric unregistered", "name", name)
	case false:
		slog.Warn("metric not registered", "name", name)
	}
}

// Mirror the latest sample sent on ch. The gauge drops back to 0 when no
// sample arrived for clearInterval.
func sampledGauge(as *utils.AppState, name, help string, ch chan float64, clearInterval time.Duration) {
	gauge := registerGauge(name, help)
	gracefulShutdownCh := as.CreateGracefulShutdownChan()
	go func() {
		clearTicker := time.NewTicker(clearInterval)
		defer clearTicker.Stop()
		for {
			select {
			case <-*gracefulShutdownCh:
				unregisterGauge(name, gauge)
				return
			case latency := <-ch:
				gauge.Set(latency)
				clearTicker.Reset(clearInterval)
			case <-clearTicker.C:
				gauge.Set(0)
			}
		}
	}()
}

// Set the gauge from probe every interval.
func probedGauge(as *utils.AppState, name, help string, interval time.Duration, probe func() (float64, error)) {
	gauge := registerGauge(name, help)
	gracefulShutdownCh := as.CreateGracefulShutdownChan()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-*gracefulShutdownCh:
				unregisterGauge(name, gauge)
				return
			case <-ticker.C:
				value, err := probe()
				if err != nil {
					slog.Error("can't collect metric", "name", name, "error", err)
					continue
				}
				gauge.Set(value)
			}
		}
	}()
}

// Start every collector. They stop on graceful shutdown.
func Init(as *utils.AppState) {
	tickerInterval := as.Config.GetMetricCollectionInterval()
	clearTickerInterval := tickerInterval * 2

	sampledGauge(as, "emailtoics_serialize_microsec",
		"The latency of serializing a calendar document in microseconds",
		as.MetricChans.Serialize, clearTickerInterval)
	sampledGauge(as, "emailtoics_database_read_microsec",
		"The latency of a database read in microseconds",
		as.MetricChans.DatabaseRead, clearTickerInterval)
	sampledGauge(as, "emailtoics_database_write_microsec",
		"The latency of a database write in microseconds",
		as.MetricChans.DatabaseWrite, clearTickerInterval)
	sampledGauge(as, "emailtoics_discord_send_message_microsec",
		"The latency of a discord message send in microseconds",
		as.MetricChans.DiscordSendMessage, clearTickerInterval)

	probedGauge(as, "emailtoics_database_empty_read_microsec",
		"The latency of an empty database read in microseconds",
		tickerInterval, func() (float64, error) {
			latency, err := databaseLatency(as)
			return float64(latency.Microseconds()), err
		})
	probedGauge(as, "emailtoics_pending_invites",
		"The number of invites waiting for confirmation",
		tickerInterval, func() (float64, error) {
			n, err := pendingInvites(as)
			return float64(n), err
		})

	if as.DgSession != nil {
		probedGauge(as, "emailtoics_discord_heartbeat_latency_microsec",
			"The latency of a discord heartbeat in microseconds",
			tickerInterval, func() (float64, error) {
				return float64(as.DgSession.HeartbeatLatency().Microseconds()), nil
			})
	}
}
