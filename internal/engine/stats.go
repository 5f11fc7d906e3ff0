package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const statsNamespace = "mdim_engine"

// Stats collects I/O counters for one context in a private registry. It
// only records while enabled.
type Stats struct {
	enabled  atomic.Bool
	registry *prometheus.Registry

	tiles    *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	duration *prometheus.SummaryVec
}

func newStats() *Stats {
	s := &Stats{
		registry: prometheus.NewRegistry(),
		tiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: statsNamespace,
			Name:      "tiles_total",
			Help:      "The number of tiles read, written or filled.",
		}, []string{"op"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: statsNamespace,
			Name:      "bytes_total",
			Help:      "The number of stored tile bytes read or written.",
		}, []string{"op"}),
		duration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Namespace: statsNamespace,
			Name:      "duration_seconds",
			Help:      "Duration of region reads and writes in seconds.",
		}, []string{"op"}),
	}
	s.registry.MustRegister(s.tiles, s.bytes, s.duration)
	return s
}

// Enable turns recording on or off, returning the previous setting.
func (s *Stats) Enable(on bool) bool {
	return s.enabled.Swap(on)
}

func (s *Stats) Enabled() bool {
	return s.enabled.Load()
}

func (s *Stats) tile(op string, n int) {
	if !s.Enabled() {
		return
	}
	s.tiles.WithLabelValues(op).Inc()
	if n > 0 {
		s.bytes.WithLabelValues(op).Add(float64(n))
	}
}

// since records the time elapsed from start under op.
func (s *Stats) since(op string, start time.Time) {
	if !s.Enabled() {
		return
	}
	s.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Gather returns the current metric families.
func (s *Stats) Gather() ([]*dto.MetricFamily, error) {
	return s.registry.Gather()
}

// Dump renders every sample as one "name{labels} value" line.
func (s *Stats) Dump() ([]string, error) {
	families, err := s.Gather()
	if err != nil {
		return nil, err
	}
	lines := []string{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			name := mf.GetName() + "{" + strings.Join(labels, ",") + "}"
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				lines = append(lines, fmt.Sprintf("%s %g", name, m.GetCounter().GetValue()))
			case dto.MetricType_SUMMARY:
				sum := m.GetSummary()
				lines = append(lines, fmt.Sprintf("%s count=%d sum=%g",
					name, sum.GetSampleCount(), sum.GetSampleSum()))
			}
		}
	}
	sort.Strings(lines)
	return lines, nil
}
