package refresh_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/require"

	"github.com/ArcticLampyrid/aurmetad/harvest"
	"github.com/ArcticLampyrid/aurmetad/protocol/client"
	"github.com/ArcticLampyrid/aurmetad/protocol/hash"
	"github.com/ArcticLampyrid/aurmetad/protocol/object"
	"github.com/ArcticLampyrid/aurmetad/refresh"
	"github.com/ArcticLampyrid/aurmetad/store"
)

func encodeEntryTypeSize(kind object.Type, size int) []byte {
	b := byte(kind<<4) | byte(size&0x0f)
	size >>= 4
	var out []byte
	for size > 0 {
		out = append(out, b|0x80)
		b = byte(size & 0x7f)
		size >>= 7
	}
	out = append(out, b)
	return out
}

func deflate(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// buildFixturePack builds a single commit/tree/.SRCINFO-blob pack,
// mirroring the shape harvest's own fixtures use.
func buildFixturePack(t *testing.T, pkgName string) (packBytes []byte, commitID hash.ObjectID, srcinfoText string) {
	t.Helper()

	srcinfoText = "pkgbase = " + pkgName + "\npkgname = " + pkgName + "\npkgver = 1.0\n"
	blobData := []byte(srcinfoText)
	blobID := hash.Object(object.TypeBlob, blobData)

	treeData := append([]byte("100644 .SRCINFO\x00"), blobID[:]...)
	treeID := hash.Object(object.TypeTree, treeData)

	commitData := []byte("tree " + treeID.String() + "\n" +
		"author Test User <test@example.com> 1700000000 +0000\n" +
		"committer Test User <test@example.com> 1700000000 +0000\n" +
		"\n" +
		"Initial commit\n")
	commitID = hash.Object(object.TypeCommit, commitData)

	var buf bytes.Buffer
	buf.WriteString("PACK")
	var versionAndCount [8]byte
	binary.BigEndian.PutUint32(versionAndCount[0:4], 2)
	binary.BigEndian.PutUint32(versionAndCount[4:8], 3)
	buf.Write(versionAndCount[:])

	buf.Write(encodeEntryTypeSize(object.TypeBlob, len(blobData)))
	buf.Write(deflate(t, blobData))
	buf.Write(encodeEntryTypeSize(object.TypeTree, len(treeData)))
	buf.Write(deflate(t, treeData))
	buf.Write(encodeEntryTypeSize(object.TypeCommit, len(commitData)))
	buf.Write(deflate(t, commitData))

	return buf.Bytes(), commitID, srcinfoText
}

func pktLine(s string) []byte {
	total := len(s) + 4
	return []byte(padHex(total) + s)
}

func padHex(n int) string {
	h := strconv.FormatInt(int64(n), 16)
	for len(h) < 4 {
		h = "0" + h
	}
	return h
}

func pktLineRaw(data []byte) []byte {
	total := len(data) + 4
	return append([]byte(padHex(total)), data...)
}

func fetchResponse(packBytes []byte) []byte {
	var out []byte
	out = append(out, pktLine("packfile")...)
	const chunk = 1000
	for i := 0; i < len(packBytes); i += chunk {
		end := i + chunk
		if end > len(packBytes) {
			end = len(packBytes)
		}
		out = append(out, pktLineRaw(append([]byte{1}, packBytes[i:end]...))...)
	}
	out = append(out, []byte("0000")...)
	return out
}

// refAdvertisement builds a minimal protocol v2 info/refs response
// advertising one branch at commitID, plus a "main" branch that must
// be excluded.
func refAdvertisement(branch string, commitID hash.ObjectID) []byte {
	var out []byte
	out = append(out, pktLine("# service=git-upload-pack")...)
	out = append(out, pktLine("version 2")...)
	out = append(out, []byte("0000")...) // flush ends the capability section
	out = append(out, pktLine(commitID.String()+" refs/heads/main")...)
	out = append(out, pktLine(commitID.String()+" refs/heads/"+branch)...)
	out = append(out, []byte("0000")...)
	return out
}

func newFixtureServer(t *testing.T, branch string, commitID hash.ObjectID, packBytes []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/info/refs"):
			_, _ = w.Write(refAdvertisement(branch, commitID))
		case strings.HasSuffix(r.URL.Path, "/git-upload-pack"):
			body, _ := io.ReadAll(r.Body)
			require.True(t, strings.Contains(string(body), "command=fetch"))
			_, _ = w.Write(fetchResponse(packBytes))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestRunIndexesNewBranch(t *testing.T) {
	t.Parallel()

	packBytes, commitID, srcinfoText := buildFixturePack(t, "foo")
	srv := newFixtureServer(t, "foo", commitID, packBytes)
	defer srv.Close()

	c, err := client.New(srv.URL)
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "index.db")
	s, err := store.Open(context.Background(), dbPath)
	require.NoError(t, err)
	defer s.Close()

	var indexedBranch string
	var indexedText string
	index := func(ctx context.Context, branch string, gotCommitID hash.ObjectID, record harvest.HarvestedRecord) ([]store.PackageRecord, error) {
		indexedBranch = branch
		indexedText = record.SrcinfoText
		return []store.PackageRecord{
			{Branch: branch, PkgName: "foo", Version: "1.0", CommitID: gotCommitID.String(), CommittedAt: record.CommittedAt},
		}, nil
	}

	err = refresh.Run(context.Background(), c, s, index, refresh.Options{})
	require.NoError(t, err)

	require.Equal(t, "foo", indexedBranch)
	require.Equal(t, srcinfoText, indexedText)

	gotCommit, ok, err := s.BranchCommitID(context.Background(), "foo")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, commitID.String(), gotCommit)

	results, err := s.SearchPackages(context.Background(), store.SearchName, "foo")
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestRunSkipsUnchangedBranch(t *testing.T) {
	t.Parallel()

	packBytes, commitID, _ := buildFixturePack(t, "foo")
	srv := newFixtureServer(t, "foo", commitID, packBytes)
	defer srv.Close()

	c, err := client.New(srv.URL)
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "index.db")
	s, err := store.Open(context.Background(), dbPath)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.UpdateBranch(context.Background(), "foo", commitID.String(), nil))

	called := false
	index := func(ctx context.Context, branch string, gotCommitID hash.ObjectID, record harvest.HarvestedRecord) ([]store.PackageRecord, error) {
		called = true
		return nil, nil
	}

	err = refresh.Run(context.Background(), c, s, index, refresh.Options{})
	require.NoError(t, err)
	require.False(t, called, "a branch already at its indexed commit must not be re-harvested")
}
