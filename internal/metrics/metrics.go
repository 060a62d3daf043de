package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MutationsTotal counts tracker mutations by operation and outcome
	MutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "readingflow_mutations_total",
		Help: "Tracker mutations by operation and result",
	}, []string{"operation", "result"})

	// PagesTotal is the total number of pages across all reading sessions
	PagesTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "readingflow_pages_total",
		Help: "Sum of pages over all reading sessions",
	})

	// StreakDays is the current reading streak
	StreakDays = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "readingflow_streak_days",
		Help: "Consecutive calendar days with at least one reading session",
	})

	// AchievementsUnlocked is the size of the current achievement set
	AchievementsUnlocked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "readingflow_achievements_unlocked",
		Help: "Number of achievements currently unlocked",
	})

	// PersistDuration observes how long saving the state takes
	PersistDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "readingflow_persist_duration_seconds",
		Help:    "Time spent serializing and writing the state blob",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	// CacheRequests counts offline cache outcomes: hit, miss, fallback, unavailable
	CacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "readingflow_cache_requests_total",
		Help: "Offline cache requests by outcome",
	}, []string{"outcome"})

	// CacheFetchErrors counts failed fetches from the asset origin
	CacheFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "readingflow_cache_fetch_errors_total",
		Help: "Failed fetches from the asset origin",
	})
)
