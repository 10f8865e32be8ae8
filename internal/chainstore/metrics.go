package chainstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var blocksAcceptedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "klingnet",
	Subsystem: "chainstore",
	Name:      "blocks_accepted_total",
	Help:      "Blocks committed to the chain, labeled genesis for the genesis block and replay for every other block; tip extensions and reorg replays share the replay label.",
}, []string{"path"})

var orphansParkedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "klingnet",
	Subsystem: "chainstore",
	Name:      "orphans_parked_total",
	Help:      "Blocks parked in the orphan pool because their parent was not the current tip.",
})

var reorgsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "klingnet",
	Subsystem: "chainstore",
	Name:      "reorgs_total",
	Help:      "Reorgs applied, each swapping one or more tip blocks for a heavier competing branch.",
})

var reorgDepthBlocks = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "klingnet",
	Subsystem: "chainstore",
	Name:      "reorg_depth_blocks",
	Help:      "Number of blocks removed from the old tip by a reorg.",
	Buckets:   prometheus.LinearBuckets(1, 1, 10),
})

var stxoPrunedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "klingnet",
	Subsystem: "chainstore",
	Name:      "stxo_pruned_total",
	Help:      "Spent-output records discarded once their MMR leaf merged past the pruning horizon.",
})
