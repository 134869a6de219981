// Package observability exposes download counters as Prometheus metrics.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zsiec/mmsget/internal/mmsh"
	"github.com/zsiec/mmsget/internal/stream"
)

const namespace = "mmsget"

var (
	activeDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "downloads_active"),
		"Number of active downloads.",
		nil, nil,
	)
	bytesReceivedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "download", "received_bytes_total"),
		"Response body bytes received.",
		[]string{"output"}, nil,
	)
	bytesWrittenDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "download", "written_bytes_total"),
		"Reassembled ASF bytes written to the output.",
		[]string{"output"}, nil,
	)
	requestsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "download", "requests_total"),
		"HTTP requests issued.",
		[]string{"output"}, nil,
	)
	resendsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "download", "resends_total"),
		"Requests reissued after protocol corruption.",
		[]string{"output"}, nil,
	)
	packetsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "download", "packets_total"),
		"Framed packets handled, by type.",
		[]string{"output", "type"}, nil,
	)
)

// Collector reports the counters of every download tracked by a manager.
type Collector struct {
	downloads *stream.Manager
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector over m.
func NewCollector(m *stream.Manager) *Collector {
	return &Collector{downloads: m}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- activeDesc
	ch <- bytesReceivedDesc
	ch <- bytesWrittenDesc
	ch <- requestsDesc
	ch <- resendsDesc
	ch <- packetsDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	downloads := c.downloads.List()
	ch <- prometheus.MustNewConstMetric(activeDesc, prometheus.GaugeValue, float64(len(downloads)))

	for _, d := range downloads {
		s := d.Stats()
		counter(ch, bytesReceivedDesc, s.BytesReceived, d.Key)
		counter(ch, bytesWrittenDesc, s.BytesWritten, d.Key)
		counter(ch, requestsDesc, s.Requests, d.Key)
		counter(ch, resendsDesc, s.Resends, d.Key)

		for typ, n := range packetCounts(s) {
			counter(ch, packetsDesc, n, d.Key, typ.String())
		}
	}
}

func counter(ch chan<- prometheus.Metric, desc *prometheus.Desc, v int64, labels ...string) {
	ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
}

func packetCounts(s mmsh.Stats) map[mmsh.PacketType]int64 {
	return map[mmsh.PacketType]int64{
		mmsh.TypeHeader:       s.HeaderPackets,
		mmsh.TypeData:         s.DataPackets,
		mmsh.TypeMetadata:     s.MetadataPackets,
		mmsh.TypePair:         s.PairPackets,
		mmsh.TypeStreamChange: s.StreamChangePackets,
		mmsh.TypeEnd:          s.EndPackets,
	}
}

// Handler returns an HTTP handler serving the collector and the Go runtime
// metrics from a dedicated registry.
func Handler(c *Collector) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c, collectors.NewGoCollector())
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
