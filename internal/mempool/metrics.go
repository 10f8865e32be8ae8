package mempool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var insertResultTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "klingnet",
	Subsystem: "mempool",
	Name:      "insert_result_total",
	Help:      "Transactions submitted to the mempool, labeled by the admission outcome.",
}, []string{"result"})

var reorgMovesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "klingnet",
	Subsystem: "mempool",
	Name:      "reorg_pool_moves_total",
	Help:      "Transactions moved between the Unconfirmed and Reorg pools, labeled by direction.",
}, []string{"direction"})

var reorgExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "klingnet",
	Subsystem: "mempool",
	Name:      "reorg_pool_expired_total",
	Help:      "Transactions dropped from the Reorg pool after exceeding their TTL.",
})

func recordInsertMetric(result InsertResult) {
	insertResultTotal.WithLabelValues(result.String()).Inc()
}
