package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	addonRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finance_assistant_addon_requests_total",
		Help: "Add-on API requests by route and outcome",
	}, []string{"route", "outcome"}) // route=supervisor|direct, outcome=success|auth|not_found|error

	addonFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finance_assistant_addon_fallbacks_total",
		Help: "Requests that fell back from the Supervisor route to the direct route",
	})

	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finance_assistant_refresh_total",
		Help: "Coordinator refresh attempts by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	refreshDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "finance_assistant_refresh_duration_seconds",
		Help:    "Time spent fetching /all_data",
		Buckets: prometheus.DefBuckets,
	})

	lastRefreshSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "finance_assistant_last_refresh_success_timestamp_seconds",
		Help: "Unix time of the last successful refresh",
	})

	sensorsBuilt = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "finance_assistant_sensors",
		Help: "Sensors produced by the last build per family",
	}, []string{"family"}) // family=account|asset|liability|card|summary

	statesPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finance_assistant_states_published_total",
		Help: "Home Assistant state writes by outcome",
	}, []string{"outcome"}) // outcome=written|skipped|failed

	snapshotsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finance_assistant_snapshots_recorded_total",
		Help: "Snapshot records handed to the history sink by outcome",
	}, []string{"sink", "outcome"}) // sink=sqlite|amqp

	workerJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finance_assistant_worker_jobs_total",
		Help: "Scheduled worker job runs by job and outcome",
	}, []string{"job", "outcome"}) // job=export|prune
)

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func IncAddonRequest(route, result string) { addonRequestsTotal.WithLabelValues(route, result).Inc() }
func IncAddonFallback()                    { addonFallbacksTotal.Inc() }

// RecordRefresh tracks one coordinator refresh attempt.
func RecordRefresh(d time.Duration, err error) {
	refreshTotal.WithLabelValues(outcome(err)).Inc()
	refreshDurationSeconds.Observe(d.Seconds())
	if err == nil {
		lastRefreshSuccess.SetToCurrentTime()
	}
}

func RecordSensorCount(family string, n int) {
	sensorsBuilt.WithLabelValues(family).Set(float64(n))
}

func IncStatePublish(result string) { statesPublishedTotal.WithLabelValues(result).Inc() }

func RecordSnapshot(sink string, err error) {
	snapshotsRecordedTotal.WithLabelValues(sink, outcome(err)).Inc()
}

func RecordWorkerJob(job string, err error) {
	workerJobsTotal.WithLabelValues(job, outcome(err)).Inc()
}
