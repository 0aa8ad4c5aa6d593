package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StatsCollector exports Cache.Stats as Prometheus gauges on every scrape
type StatsCollector struct {
	cache   *Cache
	entries *prometheus.Desc
	oldest  *prometheus.Desc
}

// NewStatsCollector describes c's entries under trailguide_cache_<name>_*
func NewStatsCollector(c *Cache, name string) *StatsCollector {
	return &StatsCollector{
		cache: c,
		entries: prometheus.NewDesc(
			prometheus.BuildFQName("trailguide", "cache", name+"_entries"),
			"Cache entries by state.",
			[]string{"state"}, nil,
		),
		oldest: prometheus.NewDesc(
			prometheus.BuildFQName("trailguide", "cache", name+"_oldest_entry_age_seconds"),
			"Age of the oldest cache entry, zero when empty.",
			nil, nil,
		),
	}
}

func (s *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- s.entries
	ch <- s.oldest
}

func (s *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	stats := s.cache.Stats()

	var age float64
	if !stats.OldestEntry.IsZero() {
		age = s.cache.now().Sub(stats.OldestEntry).Seconds()
	}

	ch <- prometheus.MustNewConstMetric(s.entries, prometheus.GaugeValue, float64(stats.FreshEntries), "fresh")
	ch <- prometheus.MustNewConstMetric(s.entries, prometheus.GaugeValue, float64(stats.StaleEntries), "stale")
	ch <- prometheus.MustNewConstMetric(s.oldest, prometheus.GaugeValue, age)
}
