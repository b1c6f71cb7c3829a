// Package harvest implements the two-phase, deepen-1/blob:none harvest
// of AUR package metadata from the upstream aur.git repository over
// Git's smart-HTTP protocol v2, and branch enumeration from the same
// advertisement.
package harvest

import "github.com/ArcticLampyrid/aurmetad/protocol/hash"

// UserAgent is sent as the "agent=" capability in every fetch request.
const UserAgent = "git/aurmetad"

// HarvestedRecord is the result of resolving one commit id: the
// .SRCINFO text reachable from its tree, and the commit's committer time.
// SrcinfoText is empty when the .SRCINFO blob was missing from the
// response or was not valid UTF-8; see metrics.EmptySrcinfoSubstituted.
type HarvestedRecord struct {
	SrcinfoText string
	CommittedAt int64
}

// blobRef pairs a commit's resolved .SRCINFO blob id with that
// commit's committer time, the intermediate result of phase A.
type blobRef struct {
	BlobID      hash.ObjectID
	CommittedAt int64
}

// BranchMap maps a branch's short name (e.g. "aws-cli") to the commit
// id it currently points at.
type BranchMap map[string]hash.ObjectID
