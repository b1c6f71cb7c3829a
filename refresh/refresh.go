// Package refresh drives one refresh cycle: enumerate branches, harvest
// each branch's commit against the store's last-seen commit, and write
// whatever changed back transactionally. Turning a harvested
// .SRCINFO's text into the store's structured PackageRecord fields is
// the caller's responsibility (see BranchIndexer) — this package only
// sequences the wire fetch and the index write.
package refresh

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ArcticLampyrid/aurmetad/harvest"
	"github.com/ArcticLampyrid/aurmetad/log"
	"github.com/ArcticLampyrid/aurmetad/metrics"
	"github.com/ArcticLampyrid/aurmetad/protocol/client"
	"github.com/ArcticLampyrid/aurmetad/protocol/hash"
	"github.com/ArcticLampyrid/aurmetad/store"
)

// BranchIndexer turns one branch's harvested commit into the package
// records to index. Supplying this is out of this package's scope: it
// depends on parsing .SRCINFO key/value syntax, which is external
// business logic, not wire-protocol or storage machinery.
type BranchIndexer func(ctx context.Context, branch string, commitID hash.ObjectID, record harvest.HarvestedRecord) ([]store.PackageRecord, error)

// Options tunes one refresh Run.
type Options struct {
	// DeltaCacheBytes bounds the harvester's per-phase decoded-object
	// cache; 0 uses protocol.DefaultDeltaCacheLimit.
	DeltaCacheBytes int
	// MaxConcurrentBranches caps how many branches are harvested and
	// written to the store at once; 0 means unbounded.
	MaxConcurrentBranches int
}

// Run enumerates c's branches, skips any whose tip the store already
// has indexed, and harvests + writes the rest. Branch updates run
// concurrently (each branch's store write is independently
// transactional), bounded by opts.MaxConcurrentBranches.
func Run(ctx context.Context, c *client.Client, s *store.Store, index BranchIndexer, opts Options) error {
	branches, err := harvest.FetchBranchList(ctx, c)
	if err != nil {
		metrics.HarvestErrors.WithLabelValues("branch_list").Inc()
		return fmt.Errorf("refresh: listing branches: %w", err)
	}

	existing, err := s.ExistingCommits(ctx)
	if err != nil {
		return fmt.Errorf("refresh: reading existing commits: %w", err)
	}

	logger := log.FromContext(ctx)
	group, groupCtx := errgroup.WithContext(ctx)
	if opts.MaxConcurrentBranches > 0 {
		group.SetLimit(opts.MaxConcurrentBranches)
	}

	for branch, commitID := range branches {
		branch, commitID := branch, commitID
		if existing[branch] == commitID.String() {
			continue
		}
		group.Go(func() error {
			if err := updateBranch(groupCtx, c, s, index, branch, commitID, opts.DeltaCacheBytes); err != nil {
				logger.Error("branch update failed", "branch", branch, "error", err)
				return err
			}
			return nil
		})
	}

	return group.Wait()
}

func updateBranch(ctx context.Context, c *client.Client, s *store.Store, index BranchIndexer, branch string, commitID hash.ObjectID, cacheLimit int) error {
	batch, err := harvest.FetchSRCInfoBatchWithCacheLimit(ctx, c, []hash.ObjectID{commitID}, cacheLimit)
	if err != nil {
		return fmt.Errorf("refresh: harvesting %s: %w", branch, err)
	}

	if len(batch) != 1 || batch[0] == nil {
		return fmt.Errorf("refresh: branch %s: commit %s absent from harvested batch", branch, commitID)
	}
	metrics.HarvestedCommits.WithLabelValues(branch).Inc()

	records, err := index(ctx, branch, commitID, *batch[0])
	if err != nil {
		return fmt.Errorf("refresh: indexing %s: %w", branch, err)
	}

	if err := s.UpdateBranch(ctx, branch, commitID.String(), records); err != nil {
		return fmt.Errorf("refresh: writing %s: %w", branch, err)
	}
	return nil
}
