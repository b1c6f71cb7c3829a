// Package metrics holds the Prometheus collectors exported by the
// mirror daemon. Collectors are registered against the default
// registry at package init so the HTTP server's /metrics handler needs
// no further wiring.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HarvestedCommits counts commits successfully resolved to a
// (.SRCINFO blob, timestamp) pair, labeled by branch.
var HarvestedCommits = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "aurmetad",
		Subsystem: "harvest",
		Name:      "commits_total",
		Help:      "Commits resolved to a .SRCINFO blob and timestamp, by branch.",
	},
	[]string{"branch"},
)

// EmptySrcinfoSubstituted counts commits whose .SRCINFO blob could not
// be fetched or decoded as UTF-8, for which an empty string was
// substituted rather than failing the whole batch.
var EmptySrcinfoSubstituted = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "aurmetad",
		Subsystem: "harvest",
		Name:      "empty_srcinfo_substituted_total",
		Help:      "Commits for which an empty .SRCINFO body was substituted because the blob was missing or not valid UTF-8.",
	},
)

// PackBytesFetched counts bytes of packfile payload received from
// upload-pack, labeled by harvest phase ("commits" or "blobs").
var PackBytesFetched = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "aurmetad",
		Subsystem: "harvest",
		Name:      "pack_bytes_fetched_total",
		Help:      "Bytes of packfile payload received from upload-pack, by phase.",
	},
	[]string{"phase"},
)

// HarvestErrors counts harvest failures, labeled by stage
// ("branch_list", "commit_phase", "blob_phase").
var HarvestErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "aurmetad",
		Subsystem: "harvest",
		Name:      "errors_total",
		Help:      "Harvest failures, by stage.",
	},
	[]string{"stage"},
)

// IndexWrites counts Index Store write transactions, labeled by branch
// and outcome ("committed", "rolled_back").
var IndexWrites = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "aurmetad",
		Subsystem: "store",
		Name:      "index_writes_total",
		Help:      "Index Store write transactions, by branch and outcome.",
	},
	[]string{"branch", "outcome"},
)

// SchemaResets counts times the Index Store dropped and recreated its
// tables because of a schema version bump.
var SchemaResets = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "aurmetad",
		Subsystem: "store",
		Name:      "schema_resets_total",
		Help:      "Times the index schema was reset due to a version bump.",
	},
)
