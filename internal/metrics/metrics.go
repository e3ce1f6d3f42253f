// Package metrics exposes Prometheus collectors for the match crawler.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiRequestsTotal      *prometheus.CounterVec
	rateLimitPausesTotal  prometheus.Counter
	rateLimitPauseSeconds prometheus.Histogram
	matchesAcceptedTotal  *prometheus.CounterVec
	matchesRejectedTotal  *prometheus.CounterVec
	playersSkippedTotal   *prometheus.CounterVec
	ladderEmptyPagesTotal *prometheus.CounterVec
	rowsFlushedTotal      *prometheus.CounterVec
	ledgerMatches         prometheus.Gauge

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		apiRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_api_requests_total",
				Help: "Outbound API requests, labeled by outcome (ok, rate_limited, rejected, no_data, transport_error).",
			},
			[]string{"outcome"},
		)

		rateLimitPausesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_rate_limit_pauses_total",
				Help: "Number of times the crawl paused after a 429 response.",
			},
		)

		rateLimitPauseSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_pause_seconds",
				Help:    "Server-declared pause durations honored after 429 responses.",
				Buckets: []float64{1, 2, 5, 10, 15, 30, 60, 120},
			},
		)

		matchesAcceptedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_matches_accepted_total",
				Help: "Matches accepted into the dataset, labeled by ladder segment.",
			},
			[]string{"tier", "region", "division"},
		)

		matchesRejectedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_matches_rejected_total",
				Help: "Matches that produced no rows, labeled by reason.",
			},
			[]string{"reason"},
		)

		playersSkippedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_players_skipped_total",
				Help: "Ladder players skipped, labeled by reason.",
			},
			[]string{"reason"},
		)

		ladderEmptyPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_ladder_empty_pages_total",
				Help: "Ladder pages that returned no players, labeled by region.",
			},
			[]string{"region"},
		)

		rowsFlushedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_rows_flushed_total",
				Help: "Player rows written to storage, labeled by destination.",
			},
			[]string{"destination"},
		)

		ledgerMatches = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_ledger_matches",
				Help: "Distinct match ids currently recorded in the dedup ledger.",
			},
		)
	})
}

// ObserveRequest counts an outbound API request by outcome.
func ObserveRequest(outcome string) {
	Init()
	apiRequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRateLimitPause records a 429-driven pause.
func ObserveRateLimitPause(d time.Duration) {
	Init()
	rateLimitPausesTotal.Inc()
	rateLimitPauseSeconds.Observe(d.Seconds())
}

// MatchAccepted counts an accepted match for its ladder segment.
func MatchAccepted(tier, region, division string) {
	Init()
	matchesAcceptedTotal.WithLabelValues(tier, region, division).Inc()
}

// MatchRejected counts a match that yielded no rows.
func MatchRejected(reason string) {
	Init()
	matchesRejectedTotal.WithLabelValues(reason).Inc()
}

// PlayerSkipped counts a ladder player that could not be crawled.
func PlayerSkipped(reason string) {
	Init()
	playersSkippedTotal.WithLabelValues(reason).Inc()
}

// EmptyPage counts a ladder page without players.
func EmptyPage(region string) {
	Init()
	ladderEmptyPagesTotal.WithLabelValues(region).Inc()
}

// RowsFlushed counts rows written to a destination.
func RowsFlushed(destination string, n int) {
	Init()
	rowsFlushedTotal.WithLabelValues(destination).Add(float64(n))
}

// SetLedgerSize reports the dedup ledger size.
func SetLedgerSize(n int) {
	Init()
	ledgerMatches.Set(float64(n))
}
