package metric

import "github.com/prometheus/client_golang/prometheus"

// AccountCounter is implemented by backends that can count accounts cheaply.
type AccountCounter interface {
	Count() int
}

// Collector reports store gauges at scrape time.
type Collector struct {
	store    AccountCounter
	accounts *prometheus.Desc
}

// NewCollector creates a collector reading from store.
func NewCollector(store AccountCounter) *Collector {
	return &Collector{
		store: store,
		accounts: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "accounts"),
			"Accounts currently held by the store.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.accounts
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.accounts, prometheus.GaugeValue, float64(c.store.Count()))
}
