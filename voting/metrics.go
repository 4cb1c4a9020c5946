package voting

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	freeVotesCast        uint64
	purchasedVotesCast   uint64
	rateLimitRejections  uint64
	referralCredits      uint64
	derivedStateFailures uint64
)

func incCounter(c *uint64) {
	atomic.AddUint64(c, 1)
}

func addCounter(c *uint64, n uint64) {
	atomic.AddUint64(c, n)
}

// MetricsCollector exposes the engine's counters to Prometheus.
type MetricsCollector struct{}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

var descs = []*prometheus.Desc{
	prometheus.NewDesc("starcast_free_votes_cast", "Free votes appended to the log", nil, nil),
	prometheus.NewDesc("starcast_purchased_votes_cast", "Purchased votes appended to the log", nil, nil),
	prometheus.NewDesc("starcast_rate_limit_rejections", "Casts rejected by the daily cap", nil, nil),
	prometheus.NewDesc("starcast_referral_credits", "Votes credited to referral codes", nil, nil),
	prometheus.NewDesc("starcast_derived_state_failures",
		"Counter or referral updates that failed after the log append", nil, nil),
}

func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range descs {
		ch <- d
	}
}

func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	for i, v := range []*uint64{
		&freeVotesCast, &purchasedVotesCast, &rateLimitRejections,
		&referralCredits, &derivedStateFailures,
	} {
		ch <- prometheus.MustNewConstMetric(
			descs[i], prometheus.CounterValue, float64(atomic.LoadUint64(v)))
	}
}
