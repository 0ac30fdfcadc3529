// Package metrics exposes the node's Prometheus instrumentation: block
// and transaction throughput plus fault counters, so operators can
// watch commit health the way the rest of the domain stack is wired in
// (spec's ambient observability concerns, carried even though consensus
// networking itself is out of scope).
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// BlocksCommitted counts blocks successfully committed.
	BlocksCommitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ledgercore",
		Name:      "blocks_committed_total",
		Help:      "Total number of blocks committed.",
	})

	// TransactionsExecuted counts executed transactions, by result kind.
	TransactionsExecuted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledgercore",
		Name:      "transactions_executed_total",
		Help:      "Total number of transactions executed, labeled by outcome.",
	}, []string{"kind"})

	// StorageFaults counts fatal storage faults observed by the fault
	// barrier.
	StorageFaults = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ledgercore",
		Name:      "storage_faults_total",
		Help:      "Total number of fatal storage faults observed.",
	})

	// PoolSize reports the last-observed mempool length.
	PoolSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ledgercore",
		Name:      "pool_size",
		Help:      "Current mempool length.",
	})
)

func init() {
	prometheus.MustRegister(BlocksCommitted, TransactionsExecuted, StorageFaults, PoolSize)
}
