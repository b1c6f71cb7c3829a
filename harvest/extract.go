package harvest

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/ArcticLampyrid/aurmetad/protocol"
	"github.com/ArcticLampyrid/aurmetad/protocol/hash"
	"github.com/ArcticLampyrid/aurmetad/protocol/object"
)

// commitInfo is a commit's tree and committer time, read from its header.
type commitInfo struct {
	TreeID      hash.ObjectID
	CommittedAt int64
}

// mapCommitsToSrcinfoBlobs decodes every object in the packfile at
// path, joining each commit (via its tree) to the blob id of its
// .SRCINFO entry, if any. Commits whose tree has no .SRCINFO entry
// (and trees that never get joined to a commit) are silently dropped,
// matching the upstream repository's per-package-directory layout
// where not every commit necessarily touches the file. A commit whose
// header lacks a tree or committer line fails the whole call.
func mapCommitsToSrcinfoBlobs(path string, cacheLimit int) (map[hash.ObjectID]blobRef, error) {
	p, err := protocol.Open(path)
	if err != nil {
		return nil, fmt.Errorf("harvest: opening phase A packfile: %w", err)
	}
	defer p.Close()

	offsets, err := p.Offsets()
	if err != nil {
		return nil, fmt.Errorf("harvest: indexing phase A packfile: %w", err)
	}

	cache := protocol.NewDeltaCache(cacheLimit)
	commitToTree := make(map[hash.ObjectID]commitInfo)
	treeToBlob := make(map[hash.ObjectID]hash.ObjectID)

	for _, offset := range offsets {
		obj, err := p.DecodeAt(offset, cache)
		if err != nil {
			return nil, fmt.Errorf("harvest: decoding phase A packfile: %w", err)
		}
		id := obj.ID()

		switch obj.Kind {
		case object.TypeCommit:
			info, err := parseCommit(obj.Data)
			if err != nil {
				return nil, fmt.Errorf("harvest: commit %s: %w", id, err)
			}
			commitToTree[id] = info
		case object.TypeTree:
			if blobID, ok := findSrcinfoBlob(obj.Data); ok {
				treeToBlob[id] = blobID
			}
		}
	}

	result := make(map[hash.ObjectID]blobRef, len(commitToTree))
	for commitID, info := range commitToTree {
		if blobID, ok := treeToBlob[info.TreeID]; ok {
			result[commitID] = blobRef{BlobID: blobID, CommittedAt: info.CommittedAt}
		}
	}
	return result, nil
}

// mapBlobIDToContent decodes every object in the packfile at path,
// returning the UTF-8 text of each blob. Blobs that aren't valid UTF-8
// are skipped rather than failing the whole batch.
func mapBlobIDToContent(path string, cacheLimit int) (map[hash.ObjectID]string, error) {
	p, err := protocol.Open(path)
	if err != nil {
		return nil, fmt.Errorf("harvest: opening phase B packfile: %w", err)
	}
	defer p.Close()

	offsets, err := p.Offsets()
	if err != nil {
		return nil, fmt.Errorf("harvest: indexing phase B packfile: %w", err)
	}

	cache := protocol.NewDeltaCache(cacheLimit)
	result := make(map[hash.ObjectID]string)

	for _, offset := range offsets {
		obj, err := p.DecodeAt(offset, cache)
		if err != nil {
			return nil, fmt.Errorf("harvest: decoding phase B packfile: %w", err)
		}
		if obj.Kind != object.TypeBlob {
			continue
		}
		if !utf8.Valid(obj.Data) {
			continue
		}
		result[obj.ID()] = string(obj.Data)
	}
	return result, nil
}

var (
	treePrefix      = []byte("tree ")
	committerPrefix = []byte("committer ")
)

// parseCommit extracts the tree id and committer time from a
// commit object's header. Parsing stops at the blank line separating
// headers from the commit message.
func parseCommit(data []byte) (commitInfo, error) {
	var info commitInfo
	var haveTree, haveTime bool

	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(line) == 0 {
			break
		}
		switch {
		case bytes.HasPrefix(line, treePrefix):
			id, err := hash.FromHex(string(line[len(treePrefix):]))
			if err != nil {
				return commitInfo{}, fmt.Errorf("parsing tree header: %w", err)
			}
			info.TreeID = id
			haveTree = true
		case bytes.HasPrefix(line, committerPrefix):
			fields := bytes.Fields(line)
			if len(fields) < 2 {
				return commitInfo{}, errors.New("malformed committer header")
			}
			epoch := fields[len(fields)-2]
			t, err := strconv.ParseInt(string(epoch), 10, 64)
			if err != nil {
				return commitInfo{}, fmt.Errorf("parsing committer timestamp: %w", err)
			}
			info.CommittedAt = t
			haveTime = true
		}
	}

	if !haveTree {
		return commitInfo{}, errors.New("commit missing tree header")
	}
	if !haveTime {
		return commitInfo{}, errors.New("commit missing committer header")
	}
	return info, nil
}

// srcinfoName is the file every AUR package directory carries at its root.
const srcinfoName = ".SRCINFO"

// regularFileModePrefix is the octal mode prefix shared by the two
// regular-file modes git uses (100644, 100755); symlinks (120000) and
// submodules (160000) don't match and are skipped.
var regularFileModePrefix = []byte("100")

// findSrcinfoBlob scans a tree object's binary entries ("<mode> <name>\0<20-byte id>"
// repeated) for a regular-file ".SRCINFO" entry.
func findSrcinfoBlob(data []byte) (hash.ObjectID, bool) {
	for len(data) > 0 {
		sp := bytes.IndexByte(data, ' ')
		if sp < 0 {
			return hash.ObjectID{}, false
		}
		mode := data[:sp]
		rest := data[sp+1:]

		nul := bytes.IndexByte(rest, 0)
		if nul < 0 || len(rest) < nul+1+hash.Size {
			return hash.ObjectID{}, false
		}
		name := rest[:nul]
		var id hash.ObjectID
		copy(id[:], rest[nul+1:nul+1+hash.Size])
		data = rest[nul+1+hash.Size:]

		if string(name) == srcinfoName && bytes.HasPrefix(mode, regularFileModePrefix) {
			return id, true
		}
	}
	return hash.ObjectID{}, false
}
