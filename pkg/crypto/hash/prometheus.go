package hash

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// hashToTreeDuration prometheus metric.
	hashToTreeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Help:      "HashToTree call duration",
			Name:      "hash_to_tree_duration_seconds",
			Namespace: "notetree",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)
	// hashedLeaves prometheus metric.
	hashedLeaves = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of leaves hashed into dense subtrees",
			Name:      "hashed_leaves_total",
			Namespace: "notetree",
		},
	)
)

func init() {
	prometheus.MustRegister(
		hashToTreeDuration,
		hashedLeaves,
	)
}

func observeHashToTree(leaves int, d time.Duration) {
	hashedLeaves.Add(float64(leaves))
	hashToTreeDuration.Observe(d.Seconds())
}
