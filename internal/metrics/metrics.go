// Package metrics records the outcome of a run for the node_exporter
// textfile collector.
package metrics

import (
	"fmt"

	"github.com/CZERTAINLY/email-output/internal/model"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "email_output"

// Recorder is safe to use as a nil pointer, all methods are then no-ops.
type Recorder struct {
	registry    *prometheus.Registry
	exitCode    prometheus.Gauge
	duration    prometheus.Gauge
	lastRun     prometheus.Gauge
	mailSent    prometheus.Gauge
	sendSuccess *prometheus.CounterVec
	sendFailure *prometheus.CounterVec
}

// New returns a Recorder whose metrics carry the job label.
func New(job string) *Recorder {
	labels := prometheus.Labels{"job": job}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		exitCode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "last_exit_code",
			Help:        "Exit code of the last run of the command",
			ConstLabels: labels,
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "last_duration_seconds",
			Help:        "Wall time of the last run of the command",
			ConstLabels: labels,
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "last_run_timestamp_seconds",
			Help:        "Unix time the last run of the command finished",
			ConstLabels: labels,
		}),
		mailSent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "mail_sent",
			Help:        "1 if the last run decided to send a notification",
			ConstLabels: labels,
		}),
		sendSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "mail_send_success_total",
			Help:        "Successful mail deliveries",
			ConstLabels: labels,
		}, []string{"transport"}),
		sendFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "mail_send_failure_total",
			Help:        "Failed mail deliveries",
			ConstLabels: labels,
		}, []string{"transport"}),
	}
	r.registry.MustRegister(
		r.exitCode,
		r.duration,
		r.lastRun,
		r.mailSent,
		r.sendSuccess,
		r.sendFailure,
	)
	return r
}

func (r *Recorder) ObserveRun(result model.ExecutionResult, send bool) {
	if r == nil {
		return
	}
	r.exitCode.Set(float64(result.ExitCode))
	r.duration.Set(result.Duration().Seconds())
	r.lastRun.Set(float64(result.FinishedAt.UnixNano()) / 1e9)
	if send {
		r.mailSent.Set(1)
	} else {
		r.mailSent.Set(0)
	}
}

func (r *Recorder) MailSent(transport string) {
	if r == nil {
		return
	}
	r.sendSuccess.WithLabelValues(transport).Inc()
}

func (r *Recorder) MailFailed(transport string) {
	if r == nil {
		return
	}
	r.sendFailure.WithLabelValues(transport).Inc()
}

func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile atomically replaces path with the current metrics.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
