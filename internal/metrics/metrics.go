// Package metrics exposes Prometheus instrumentation for the storage engine.
package metrics

import (
	"sort"
	"strings"

	"github.com/deploymenttheory/go-its/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "its"

// Collector holds the engine metrics. A nil *Collector is valid and records
// nothing.
type Collector struct {
	Operations      *prometheus.CounterVec
	Compactions     *prometheus.CounterVec
	Recoveries      *prometheus.CounterVec
	BytesProgrammed *prometheus.CounterVec
	LiveFiles       *prometheus.GaugeVec
	FreeBytes       *prometheus.GaugeVec
}

// New registers the engine metrics on reg
func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		Operations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Storage requests by store, operation and result status",
			},
			[]string{"store", "op", "result"},
		),
		Compactions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compactions_total",
				Help:      "Block swaps performed by the filesystem",
			},
			[]string{"store"},
		),
		Recoveries: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recoveries_total",
				Help:      "Recovery actions taken while preparing a store",
			},
			[]string{"store", "action"},
		),
		BytesProgrammed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "programmed_bytes_total",
				Help:      "Bytes written to flash",
			},
			[]string{"store"},
		),
		LiveFiles: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "live_files",
				Help:      "Files present in the active block",
			},
			[]string{"store"},
		),
		FreeBytes: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "free_bytes",
				Help:      "Unallocated bytes in the active block",
			},
			[]string{"store"},
		),
	}
}

// RecordOperation counts a request with its resulting status
func (c *Collector) RecordOperation(store, op string, err error) {
	if c == nil {
		return
	}
	result := strings.ReplaceAll(types.StatusOf(err).String(), " ", "_")
	c.Operations.WithLabelValues(store, op, result).Inc()
}

// RecordCompaction counts a completed block swap
func (c *Collector) RecordCompaction(store string) {
	if c == nil {
		return
	}
	c.Compactions.WithLabelValues(store).Inc()
}

// RecordRecovery counts a recovery action taken by Prepare
func (c *Collector) RecordRecovery(store, action string) {
	if c == nil {
		return
	}
	c.Recoveries.WithLabelValues(store, action).Inc()
}

// AddProgrammed adds n written bytes
func (c *Collector) AddProgrammed(store string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.BytesProgrammed.WithLabelValues(store).Add(float64(n))
}

// SetUsage updates the space gauges of a store
func (c *Collector) SetUsage(store string, liveFiles int, freeBytes uint32) {
	if c == nil {
		return
	}
	c.LiveFiles.WithLabelValues(store).Set(float64(liveFiles))
	c.FreeBytes.WithLabelValues(store).Set(float64(freeBytes))
}

// Sample is one gathered metric value
type Sample struct {
	Name   string            `json:"name" yaml:"name"`
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	Value  float64           `json:"value" yaml:"value"`
}

// Gather flattens the counters and gauges of g into samples sorted by name
func Gather(g prometheus.Gatherer) ([]Sample, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}

	var out []Sample
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			s := Sample{Name: mf.GetName(), Labels: labels(m)}
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				s.Value = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				s.Value = m.GetGauge().GetValue()
			default:
				continue
			}
			out = append(out, s)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func labels(m *dto.Metric) map[string]string {
	if len(m.GetLabel()) == 0 {
		return nil
	}
	out := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}
