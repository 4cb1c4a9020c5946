package node

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/starcasthq/starcast/db"
)

func makeDBMetrics() db.EventListener {
	readCounter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "db",
		Name:      "reads",
	})
	writeCounter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "db",
		Name:      "writes",
	})
	commitCounter := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "db",
		Name:      "commits",
	})

	prometheus.MustRegister(readCounter, writeCounter, commitCounter)
	return &db.SelectiveListener{
		OnIOCb: func(write bool) {
			if write {
				writeCounter.Inc()
			} else {
				readCounter.Inc()
			}
		},
		OnCommitCb: func() {
			commitCounter.Inc()
		},
	}
}
