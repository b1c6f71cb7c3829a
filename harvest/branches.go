package harvest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ArcticLampyrid/aurmetad/protocol"
	"github.com/ArcticLampyrid/aurmetad/protocol/client"
	"github.com/ArcticLampyrid/aurmetad/protocol/hash"
)

// FetchBranchList retrieves the current branch-name-to-commit-id map
// from the repository's info/refs advertisement, excluding "main" (the
// AUR namespace base branch package directories are committed against,
// not a package branch itself).
func FetchBranchList(ctx context.Context, c *client.Client) (BranchMap, error) {
	raw, err := c.SmartInfo(ctx, "git-upload-pack")
	if err != nil {
		return nil, fmt.Errorf("harvest: fetching branch advertisement: %w", err)
	}
	return parseBranchAdvertisement(raw)
}

// parseBranchAdvertisement skips the service-announcement section (it
// ends at the first flush packet) and then reads "<oid> refs/heads/<name>"
// lines from the ref advertisement that follows.
func parseBranchAdvertisement(raw []byte) (BranchMap, error) {
	s := protocol.NewScanner(bytes.NewReader(raw))

	for {
		kind, _, err := s.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: advertisement ended before service announcement flush", ErrMalformedAdvertisement)
			}
			return nil, err
		}
		if kind == protocol.LineFlush {
			break
		}
	}

	branches := make(BranchMap)
	for {
		kind, data, err := s.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		if kind != protocol.LineData {
			break
		}

		line := strings.TrimRight(string(data), "\n")
		if idx := strings.IndexByte(line, 0); idx >= 0 {
			line = line[:idx] // strip the capability list trailing the first advertised ref
		}

		oidHex, branchName, ok := strings.Cut(line, " refs/heads/")
		if !ok || branchName == "main" {
			continue
		}
		id, err := hash.FromHex(oidHex)
		if err != nil {
			continue
		}
		branches[branchName] = id
	}
	return branches, nil
}
