// Package metrics keeps run statistics in memory and mirrors them as Prometheus
// collectors for the monitoring endpoint.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/deusflow/findigest/internal/logger"
)

var (
	feedFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "findigest_feed_fetches_total",
		Help: "Feed fetches by source and result (ok or failure kind)",
	}, []string{"source", "result"})

	entryVerdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "findigest_entries_total",
		Help: "Feed entries by classification outcome",
	}, []string{"verdict"})

	articlesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "findigest_articles_dropped_total",
		Help: "Admitted articles left out of the digest by the per-section cap",
	})

	messagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "findigest_telegram_messages_sent_total",
		Help: "Digest parts delivered to a recipient",
	})

	deliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "findigest_delivery_failures_total",
		Help: "Digest parts that could not be delivered",
	})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "findigest_run_duration_seconds",
		Help:    "Duration of a complete digest run",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s .. ~4m
	})

	lastRun = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "findigest_last_run_timestamp_seconds",
		Help: "Unix time of the last finished run",
	})
)

// SourceStats aggregates the outcomes of one feed in a run.
type SourceStats struct {
	Source  string         `json:"source"`
	Entries int            `json:"entries"`
	Failure string         `json:"failure,omitempty"` // rss failure kind, empty on success
	Counts  map[string]int `json:"counts"`            // verdict -> entries
	Elapsed time.Duration  `json:"elapsed"`
}

type Metrics struct {
	mu sync.RWMutex

	// Counters
	FeedsFetched         int64
	FeedsFailed          int64
	ArticlesAdmitted     int64
	ArticlesDropped      int64
	TelegramMessagesSent int64
	DeliveryFailures     int64

	// Timings
	LastProcessingTime    time.Duration
	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration
	ProcessingCount       int64

	// Status
	LastRunID     string
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool

	sources map[string]*SourceStats
}

func New() *Metrics {
	return &Metrics{IsHealthy: true, sources: make(map[string]*SourceStats)}
}

var Global = New()

func (m *Metrics) source(name string) *SourceStats {
	s, ok := m.sources[name]
	if !ok {
		s = &SourceStats{Source: name, Counts: make(map[string]int)}
		m.sources[name] = s
	}
	return s
}

// RecordFetch stores the outcome of fetching one feed. failure is the error kind,
// empty when the fetch succeeded.
func (m *Metrics) RecordFetch(source string, entries int, failure string, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.source(source)
	s.Entries = entries
	s.Failure = failure
	s.Elapsed = elapsed

	result := "ok"
	if failure != "" {
		result = failure
		m.FeedsFailed++
	} else {
		m.FeedsFetched++
	}
	feedFetches.WithLabelValues(source, result).Inc()
}

// RecordVerdicts adds classification counts for a source.
func (m *Metrics) RecordVerdicts(source string, counts map[string]int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.source(source)
	for verdict, n := range counts {
		s.Counts[verdict] += n
		entryVerdicts.WithLabelValues(verdict).Add(float64(n))
		if verdict == "admitted" {
			m.ArticlesAdmitted += int64(n)
		}
	}
}

func (m *Metrics) AddArticlesDropped(n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ArticlesDropped += int64(n)
	articlesDropped.Add(float64(n))
}

func (m *Metrics) IncrementTelegramMessagesSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TelegramMessagesSent++
	messagesSent.Inc()
}

func (m *Metrics) IncrementDeliveryFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeliveryFailures++
	deliveryFailures.Inc()
}

func (m *Metrics) RecordProcessingTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastProcessingTime = duration
	m.TotalProcessingTime += duration
	m.ProcessingCount++

	if m.ProcessingCount > 0 {
		m.AverageProcessingTime = m.TotalProcessingTime / time.Duration(m.ProcessingCount)
	}
	runDuration.Observe(duration.Seconds())
}

func (m *Metrics) SetLastRun(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunID = runID
	m.LastRunTime = time.Now()
	m.IsHealthy = true
	lastRun.SetToCurrentTime()
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

// Sources returns a copy of the per-source statistics sorted by source name.
func (m *Metrics) Sources() []SourceStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]SourceStats, 0, len(m.sources))
	for _, s := range m.sources {
		c := *s
		c.Counts = make(map[string]int, len(s.Counts))
		for k, v := range s.Counts {
			c.Counts[k] = v
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"run_id":                     m.LastRunID,
		"feeds_fetched":              m.FeedsFetched,
		"feeds_failed":               m.FeedsFailed,
		"articles_admitted":          m.ArticlesAdmitted,
		"articles_dropped":           m.ArticlesDropped,
		"telegram_messages_sent":     m.TelegramMessagesSent,
		"delivery_failures":          m.DeliveryFailures,
		"last_processing_time_ms":    m.LastProcessingTime.Milliseconds(),
		"average_processing_time_ms": m.AverageProcessingTime.Milliseconds(),
		"last_run_time":              m.LastRunTime.Format(time.RFC3339),
		"last_error_time":            m.LastErrorTime.Format(time.RFC3339),
		"last_error":                 m.LastError,
		"is_healthy":                 m.IsHealthy,
	}
}

// LogSummary writes one line per source and a run total.
func (m *Metrics) LogSummary() {
	for _, s := range m.Sources() {
		args := []any{"source", s.Source, "entries", s.Entries, "elapsed", s.Elapsed.Round(time.Millisecond)}
		if s.Failure != "" {
			args = append(args, "failure", s.Failure)
		}
		keys := make([]string, 0, len(s.Counts))
		for k := range s.Counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			args = append(args, k, s.Counts[k])
		}
		logger.Info("source summary", args...)
	}

	stats := m.GetStats()
	logger.Info("run summary",
		"feeds_fetched", stats["feeds_fetched"],
		"feeds_failed", stats["feeds_failed"],
		"articles_admitted", stats["articles_admitted"],
		"articles_dropped", stats["articles_dropped"],
		"messages_sent", stats["telegram_messages_sent"],
		"delivery_failures", stats["delivery_failures"],
	)
}
