package protocol_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/require"

	"github.com/ArcticLampyrid/aurmetad/protocol"
	"github.com/ArcticLampyrid/aurmetad/protocol/object"
)

// encodeEntryTypeSize mirrors the packfile entry header varint used by
// git itself, used here only to construct fixture packs.
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

// encodeOfsDeltaOffset mirrors git's "offset encoding" for ofs-delta
// base references, the inverse of the decoder in packfile.go.
func encodeOfsDeltaOffset(rel int64) []byte {
	var buf [10]byte
	i := len(buf) - 1
	buf[i] = byte(rel & 0x7f)
	rel >>= 7
	for rel > 0 {
		rel--
		i--
		buf[i] = byte(rel&0x7f) | 0x80
		rel >>= 7
	}
	return buf[i:]
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

// buildFixturePack writes a 2-object pack to a temp file: a blob
// "hello world", followed by an ofs-delta that turns it into
// "hello world!!!". It returns the path and each entry's offset.
func buildFixturePack(t *testing.T) (path string, blobOffset, deltaOffset int64) {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("PACK")
	var versionAndCount [8]byte
	binary.BigEndian.PutUint32(versionAndCount[0:4], 2)
	binary.BigEndian.PutUint32(versionAndCount[4:8], 2)
	buf.Write(versionAndCount[:])

	blobOffset = int64(buf.Len())
	blobData := []byte("hello world")
	buf.Write(encodeEntryTypeSize(object.TypeBlob, len(blobData)))
	buf.Write(deflate(t, blobData))

	deltaOffset = int64(buf.Len())
	delta := []byte{
		0x0b, 0x0e, // base size 11, target size 14
		0x90, 0x0b, // copy offset=0 (omitted), size=11
		0x03, '!', '!', '!', // insert "!!!"
	}
	buf.Write(encodeEntryTypeSize(object.TypeOfsDelta, len(delta)))
	buf.Write(encodeOfsDeltaOffset(deltaOffset - blobOffset))
	buf.Write(deflate(t, delta))

	dir := t.TempDir()
	path = filepath.Join(dir, "fixture.pack")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path, blobOffset, deltaOffset
}

func TestPackOpenAndCount(t *testing.T) {
	t.Parallel()
	path, _, _ := buildFixturePack(t)

	p, err := protocol.Open(path)
	require.NoError(t, err)
	defer p.Close()

	require.Equal(t, uint32(2), p.Count())
}

func TestPackOffsets(t *testing.T) {
	t.Parallel()
	path, blobOffset, deltaOffset := buildFixturePack(t)

	p, err := protocol.Open(path)
	require.NoError(t, err)
	defer p.Close()

	offsets, err := p.Offsets()
	require.NoError(t, err)
	require.Equal(t, []int64{blobOffset, deltaOffset}, offsets)
}

func TestPackDecodeAt(t *testing.T) {
	t.Parallel()
	path, blobOffset, deltaOffset := buildFixturePack(t)

	p, err := protocol.Open(path)
	require.NoError(t, err)
	defer p.Close()

	cache := protocol.NewDeltaCache(0)

	blob, err := p.DecodeAt(blobOffset, cache)
	require.NoError(t, err)
	require.Equal(t, object.TypeBlob, blob.Kind)
	require.Equal(t, "hello world", string(blob.Data))

	resolved, err := p.DecodeAt(deltaOffset, cache)
	require.NoError(t, err)
	require.Equal(t, object.TypeBlob, resolved.Kind)
	require.Equal(t, "hello world!!!", string(resolved.Data))

	// Decoding again should hit the cache and return the same result.
	again, err := p.DecodeAt(deltaOffset, cache)
	require.NoError(t, err)
	require.Equal(t, resolved.Data, again.Data)
}

func TestDeltaCacheEviction(t *testing.T) {
	t.Parallel()
	cache := protocol.NewDeltaCache(10)

	cache.Put(0, protocol.Object{Kind: object.TypeBlob, Data: make([]byte, 6)})
	cache.Put(1, protocol.Object{Kind: object.TypeBlob, Data: make([]byte, 6)})

	require.Equal(t, 1, cache.Len(), "oldest entry should have been evicted once the byte budget was exceeded")
	_, ok := cache.Get(0)
	require.False(t, ok)
	_, ok = cache.Get(1)
	require.True(t, ok)
}
