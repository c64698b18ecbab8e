package client

import (
	"github.com/go-kit/kit/metrics"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

// NewPrometheusMetrics registers the node call latency histogram,
// labelled by method and outcome, with reg.
func NewPrometheusMetrics(reg stdprometheus.Registerer, namespace string) (metrics.Histogram, error) {
	hv := stdprometheus.NewHistogramVec(stdprometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "client",
		Name:      "request_duration_seconds",
		Help:      "Node call latency in seconds.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{"method", "status"})
	if err := reg.Register(hv); err != nil {
		return nil, err
	}
	return kitprometheus.NewHistogram(hv), nil
}
