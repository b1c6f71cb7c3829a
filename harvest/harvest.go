package harvest

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ArcticLampyrid/aurmetad/log"
	"github.com/ArcticLampyrid/aurmetad/metrics"
	"github.com/ArcticLampyrid/aurmetad/protocol"
	"github.com/ArcticLampyrid/aurmetad/protocol/client"
	"github.com/ArcticLampyrid/aurmetad/protocol/hash"
)

// FetchSRCInfoBatch resolves a batch of commit ids to their .SRCINFO
// content and commit time, in two upload-pack round trips: phase A
// (shallow, blob-filtered) maps each commit to its .SRCINFO blob id and
// timestamp; phase B fetches only the distinct blobs phase A found.
//
// The result is aligned index-for-index with commitIDs: result[i] is
// nil if commitIDs[i] wasn't reachable from upload-pack's advertised
// refs or had no .SRCINFO entry in its tree. A non-nil entry with an
// empty SrcinfoText had a .SRCINFO blob that couldn't be fetched or
// wasn't valid UTF-8; see metrics.EmptySrcinfoSubstituted.
func FetchSRCInfoBatch(ctx context.Context, c *client.Client, commitIDs []hash.ObjectID) ([]*HarvestedRecord, error) {
	return FetchSRCInfoBatchWithCacheLimit(ctx, c, commitIDs, 0)
}

// FetchSRCInfoBatchWithCacheLimit is FetchSRCInfoBatch with an explicit
// byte budget for the decoded-object delta cache used in each phase; a
// limit of 0 uses protocol.DefaultDeltaCacheLimit.
func FetchSRCInfoBatchWithCacheLimit(ctx context.Context, c *client.Client, commitIDs []hash.ObjectID, cacheLimit int) ([]*HarvestedRecord, error) {
	if len(commitIDs) == 0 {
		return nil, nil
	}

	commitMeta, err := fetchBlobIDsAndTimestamps(ctx, c, commitIDs, cacheLimit)
	if err != nil {
		metrics.HarvestErrors.WithLabelValues("commit_phase").Inc()
		return nil, fmt.Errorf("harvest: phase A (commit metadata): %w", err)
	}

	seen := make(map[hash.ObjectID]bool, len(commitMeta))
	blobIDs := make([]hash.ObjectID, 0, len(commitMeta))
	for _, ref := range commitMeta {
		if !seen[ref.BlobID] {
			seen[ref.BlobID] = true
			blobIDs = append(blobIDs, ref.BlobID)
		}
	}

	blobContent, err := fetchBlobContents(ctx, c, blobIDs, cacheLimit)
	if err != nil {
		metrics.HarvestErrors.WithLabelValues("blob_phase").Inc()
		return nil, fmt.Errorf("harvest: phase B (blob content): %w", err)
	}

	logger := log.FromContext(ctx)
	result := make([]*HarvestedRecord, len(commitIDs))
	for i, commitID := range commitIDs {
		ref, ok := commitMeta[commitID]
		if !ok {
			continue
		}
		text, ok := blobContent[ref.BlobID]
		if !ok {
			logger.Debug("substituting empty .SRCINFO", "commit", commitID, "blob", ref.BlobID)
			metrics.EmptySrcinfoSubstituted.Inc()
		}
		result[i] = &HarvestedRecord{SrcinfoText: text, CommittedAt: ref.CommittedAt}
	}
	return result, nil
}

func fetchBlobIDsAndTimestamps(ctx context.Context, c *client.Client, commitIDs []hash.ObjectID, cacheLimit int) (map[hash.ObjectID]blobRef, error) {
	packs := []protocol.Pack{
		protocol.PackLine("command=fetch\n"),
		protocol.PackLine("agent=" + UserAgent + "\n"),
		protocol.DelimiterPacket,
	}
	for _, id := range commitIDs {
		packs = append(packs, protocol.PackLine("want "+id.String()+"\n"))
	}
	packs = append(packs,
		protocol.PackLine("ofs-delta\n"),
		protocol.PackLine("deepen 1\n"),
		protocol.PackLine("filter blob:none\n"),
		protocol.PackLine("no-progress\n"),
		protocol.PackLine("done\n"),
	)

	path, err := fetchPackfile(ctx, c, packs, "commits")
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	return mapCommitsToSrcinfoBlobs(path, cacheLimit)
}

func fetchBlobContents(ctx context.Context, c *client.Client, blobIDs []hash.ObjectID, cacheLimit int) (map[hash.ObjectID]string, error) {
	if len(blobIDs) == 0 {
		return map[hash.ObjectID]string{}, nil
	}

	packs := []protocol.Pack{
		protocol.PackLine("command=fetch\n"),
		protocol.PackLine("agent=" + UserAgent + "\n"),
		protocol.DelimiterPacket,
	}
	for _, id := range blobIDs {
		packs = append(packs, protocol.PackLine("want "+id.String()+"\n"))
	}
	packs = append(packs,
		protocol.PackLine("ofs-delta\n"),
		protocol.PackLine("no-progress\n"),
		protocol.PackLine("done\n"),
	)

	path, err := fetchPackfile(ctx, c, packs, "blobs")
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	return mapBlobIDToContent(path, cacheLimit)
}

// fetchPackfile issues a fetch request built from packs, demultiplexes
// the sideband packfile section of the response into a temp file, and
// returns its path. The caller owns removing it.
func fetchPackfile(ctx context.Context, c *client.Client, packs []protocol.Pack, phase string) (string, error) {
	body, err := protocol.FormatPacks(packs...)
	if err != nil {
		return "", fmt.Errorf("harvest: building fetch request: %w", err)
	}

	resp, err := c.UploadPack(ctx, body)
	if err != nil {
		return "", fmt.Errorf("harvest: upload-pack request: %w", err)
	}
	defer resp.Close()

	tmp, err := os.CreateTemp("", "aurmetad-pack-*.pack")
	if err != nil {
		return "", fmt.Errorf("harvest: creating temp packfile: %w", err)
	}
	path := tmp.Name()

	counter := metrics.PackBytesFetched.WithLabelValues(phase)
	err = readPackfileFromResponse(ctx, resp, countingWriter{tmp, counter})
	closeErr := tmp.Close()
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("harvest: receiving packfile: %w", err)
	}
	if closeErr != nil {
		os.Remove(path)
		return "", fmt.Errorf("harvest: flushing temp packfile: %w", closeErr)
	}
	return path, nil
}

type counterAdd interface{ Add(float64) }

type countingWriter struct {
	w io.Writer
	c counterAdd
}

func (cw countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.c.Add(float64(n))
	return n, err
}
