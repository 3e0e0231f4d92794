package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "presence"

var (
	currentGuestsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "current_guests",
		Help:      "Guests with an active presence session.",
	})
	todayCheckinsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "today_checkins",
		Help:      "Sessions started during the current facility day.",
	})
	averageStayGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "today_average_stay_minutes",
		Help:      "Mean stay of today's sessions in minutes.",
	})
	statsRefreshedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stats_refreshed_timestamp_seconds",
		Help:      "Unix timestamp of the last successful stats refresh.",
	})

	transitionsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transitions_total",
		Help:      "Presence transitions by kind (check_in, check_out) and outcome.",
	}, []string{"transition", "outcome"})

	displayIDConflictsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "display_id",
		Name:      "conflicts_total",
		Help:      "Optimistic sequence proposals that lost to a concurrent writer or failed.",
	})
	displayIDExhaustedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "display_id",
		Name:      "exhausted_total",
		Help:      "Allocations that gave up after the retry budget.",
	})
	displayIDAllocatedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "display_id",
		Name:      "allocated_total",
		Help:      "Display ids handed out.",
	})

	activityUpsertsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "activity",
		Name:      "upserts_total",
		Help:      "Activity log entries written.",
	})
	exportRowsHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "activity",
		Name:      "export_rows",
		Help:      "Rows produced per activity export.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	})
)

func init() {
	prometheus.MustRegister(
		currentGuestsGauge,
		todayCheckinsGauge,
		averageStayGauge,
		statsRefreshedGauge,
		transitionsCounter,
		displayIDConflictsCounter,
		displayIDExhaustedCounter,
		displayIDAllocatedCounter,
		activityUpsertsCounter,
		exportRowsHistogram,
	)
}

// RecordStats publishes a fresh stats snapshot.
func RecordStats(current, checkins int64, averageStayMinutes int, at time.Time) {
	currentGuestsGauge.Set(float64(current))
	todayCheckinsGauge.Set(float64(checkins))
	averageStayGauge.Set(float64(averageStayMinutes))
	if !at.IsZero() {
		statsRefreshedGauge.Set(float64(at.Unix()))
	}
}

// RecordTransition counts a check-in or check-out attempt.
func RecordTransition(transition string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
	}
	transitionsCounter.WithLabelValues(transition, outcome).Inc()
}

// RecordDisplayIDConflict counts one lost or failed proposal.
func RecordDisplayIDConflict() { displayIDConflictsCounter.Inc() }

// RecordDisplayIDExhausted counts an allocation that ran out of attempts.
func RecordDisplayIDExhausted() { displayIDExhaustedCounter.Inc() }

// RecordDisplayIDAllocated counts a successful allocation.
func RecordDisplayIDAllocated() { displayIDAllocatedCounter.Inc() }

func RecordActivityUpsert() { activityUpsertsCounter.Inc() }

func RecordExportRows(n int) { exportRowsHistogram.Observe(float64(n)) }
