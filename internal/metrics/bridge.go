// Package metrics provides Prometheus metrics for the bridge and the community engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labels carry the application name only; message names stay out of labels.
var (
	TicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moos_bridge_ticks_total",
		Help: "Total number of engine ticks dispatched, by application.",
	}, []string{"app"})

	NotifyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moos_bridge_notify_total",
		Help: "Total number of notify calls, by application and result (ok/failed).",
	}, []string{"app", "result"})

	RegisterTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moos_bridge_register_total",
		Help: "Total number of register calls, by application and result (ok/failed).",
	}, []string{"app", "result"})

	SessionsEstablishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moos_bridge_sessions_established_total",
		Help: "Total number of (re)connections handled, by application.",
	}, []string{"app"})

	MailValuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moos_bridge_mail_values_total",
		Help: "Total number of inbound values delivered to the application.",
	}, []string{"app"})

	ReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moos_bridge_reports_total",
		Help: "Total number of status reports built, by application.",
	}, []string{"app"})

	WorkerIterationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moos_bridge_worker_iterations_total",
		Help: "Total number of worker tick invocations, by application and result (ok/failed).",
	}, []string{"app", "result"})

	DecodeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moos_bridge_decode_errors_total",
		Help: "Total number of inbound payloads rejected by the wire decoder, by application.",
	}, []string{"app"})

	DrainSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "moos_bridge_drain_size",
		Help:    "Number of outgoing values drained per tick.",
		Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
	}, []string{"app"})

	Connected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "moos_bridge_connected",
		Help: "1 while the engine reports a live session, 0 otherwise.",
	}, []string{"app"})
)

func result(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}

// RecordNotify counts a notify call.
func RecordNotify(app string, err error) {
	NotifyTotal.WithLabelValues(app, result(err)).Inc()
}

// RecordRegister counts a register call.
func RecordRegister(app string, err error) {
	RegisterTotal.WithLabelValues(app, result(err)).Inc()
}

// RecordWorkerIteration counts one worker tick.
func RecordWorkerIteration(app string, err error) {
	WorkerIterationsTotal.WithLabelValues(app, result(err)).Inc()
}

// RecordTick counts a tick and the size of its drain.
func RecordTick(app string, drained int) {
	TicksTotal.WithLabelValues(app).Inc()
	DrainSize.WithLabelValues(app).Observe(float64(drained))
}

// RecordMail counts delivered inbound values.
func RecordMail(app string, n int) {
	MailValuesTotal.WithLabelValues(app).Add(float64(n))
}

// SetConnected flips the connection gauge.
func SetConnected(app string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	Connected.WithLabelValues(app).Set(v)
}
