package merkle

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// treeSize prometheus metric.
	treeSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Help:      "Current tree size",
			Name:      "tree_size",
			Namespace: "notetree",
		},
		[]string{"tree"},
	)
	// leafUpdates prometheus metric.
	leafUpdates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of single leaf updates",
			Name:      "leaf_updates_total",
			Namespace: "notetree",
		},
	)
	// batchChunks prometheus metric.
	batchChunks = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Help:      "Number of leaves in batch update chunks",
			Name:      "batch_chunk_leaves",
			Namespace: "notetree",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		},
	)
	// subtreeConflicts prometheus metric.
	subtreeConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of rejected subtree replacements",
			Name:      "subtree_conflicts_total",
			Namespace: "notetree",
		},
	)
	// removedNodes prometheus metric.
	removedNodes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of node records removed by reference counting",
			Name:      "removed_nodes_total",
			Namespace: "notetree",
		},
	)
)

func init() {
	prometheus.MustRegister(
		treeSize,
		leafUpdates,
		batchChunks,
		subtreeConflicts,
		removedNodes,
	)
}

func updateTreeSizeMetric(name string, size uint64) {
	treeSize.WithLabelValues(name).Set(float64(size))
}

func observeChunk(leaves int) {
	batchChunks.Observe(float64(leaves))
}

func addRemovedNodesMetric(n int) {
	removedNodes.Add(float64(n))
}
