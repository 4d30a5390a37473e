package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tapflow",
		Subsystem: "sync",
		Name:      "rows",
		Help:      "Rows extracted by database and table",
	}, []string{"database", "table"})
	SyncRows = func(database, table string) prometheus.Counter {
		return syncRows.WithLabelValues(database, table)
	}

	syncBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tapflow",
		Subsystem: "sync",
		Name:      "batches",
		Help:      "Batch files produced by database and table",
	}, []string{"database", "table"})
	SyncBatches = func(database, table string) prometheus.Counter {
		return syncBatches.WithLabelValues(database, table)
	}

	syncErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tapflow",
		Subsystem: "sync",
		Name:      "errors",
		Help:      "Stream sync failures by database and table",
	}, []string{"database", "table"})
	SyncErrors = func(database, table string) prometheus.Counter {
		return syncErrors.WithLabelValues(database, table)
	}
)
