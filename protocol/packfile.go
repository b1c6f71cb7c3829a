package protocol

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zlib"

	"github.com/ArcticLampyrid/aurmetad/protocol/hash"
	"github.com/ArcticLampyrid/aurmetad/protocol/object"
)

// packSignature is the 4-byte magic at the start of every packfile.
var packSignature = [4]byte{'P', 'A', 'C', 'K'}

// Header is the fixed 12-byte packfile preamble.
type Header struct {
	Version uint32
	Count   uint32
}

// ReadHeader reads and validates the 12-byte packfile preamble.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [12]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, fmt.Errorf("protocol: reading pack header: %w", err)
	}
	if [4]byte(buf[:4]) != packSignature {
		return Header{}, fmt.Errorf("protocol: bad pack signature %q", buf[:4])
	}
	return Header{
		Version: binary.BigEndian.Uint32(buf[4:8]),
		Count:   binary.BigEndian.Uint32(buf[8:12]),
	}, nil
}

// Object is a fully resolved, non-delta packfile object: its type and
// canonical (post-delta-application) content.
type Object struct {
	Kind object.Type
	Data []byte
}

// ID computes this object's canonical SHA-1 object id.
func (o Object) ID() hash.ObjectID {
	return hash.Object(o.Kind, o.Data)
}

// Pack is a handle onto a packfile on disk, opened for random-access
// entry decoding. It does not hold the whole file in memory.
type Pack struct {
	file   *os.File
	size   int64
	header Header

	// objectIndex maps object id to pack offset, built lazily the first
	// time a ref-delta needs resolving. Most AUR mirror fetches never
	// touch this: upload-pack on modern servers emits ofs-delta only.
	objectIndex map[hash.ObjectID]int64
}

// Open validates the packfile header at path and returns a handle for
// random-access decoding via DecodeAt. Call Close when done.
func Open(path string) (*Pack, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	hdr, err := ReadHeader(io.NewSectionReader(f, 0, info.Size()))
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Pack{file: f, size: info.Size(), header: hdr}, nil
}

// Close releases the underlying file handle.
func (p *Pack) Close() error {
	return p.file.Close()
}

// Count returns the number of objects the pack header declares.
func (p *Pack) Count() uint32 {
	return p.header.Count
}

// countingReader tracks how many bytes have been pulled from the
// underlying reader, regardless of how much of that has actually been
// consumed by a caller buffering on top of it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// entryHeader is the variable-length type+size field at the start of
// every packfile entry, plus whatever delta base reference follows it.
type entryHeader struct {
	kind        object.Type
	size        int // inflated size for non-delta entries, delta payload size otherwise
	baseOffset  int64
	baseID      hash.ObjectID
	isOfsDelta  bool
	isRefDelta  bool
}

// readEntryHeader parses the type+size field and, for delta entries,
// the base reference that follows it. br must support ReadByte so size
// accounting via pos in Offsets stays exact.
func readEntryHeader(br *bufio.Reader, entryOffset int64) (entryHeader, error) {
	var eh entryHeader

	b, err := br.ReadByte()
	if err != nil {
		return eh, fmt.Errorf("reading entry header: %w", err)
	}
	eh.kind = object.Type((b >> 4) & 0x7)
	eh.size = int(b & 0x0f)
	shift := uint(4)
	for b&0x80 != 0 {
		b, err = br.ReadByte()
		if err != nil {
			return eh, fmt.Errorf("reading entry size: %w", err)
		}
		eh.size |= int(b&0x7f) << shift
		shift += 7
	}

	switch eh.kind {
	case object.TypeOfsDelta:
		eh.isOfsDelta = true
		b, err = br.ReadByte()
		if err != nil {
			return eh, fmt.Errorf("reading ofs-delta offset: %w", err)
		}
		rel := int64(b & 0x7f)
		for b&0x80 != 0 {
			b, err = br.ReadByte()
			if err != nil {
				return eh, fmt.Errorf("reading ofs-delta offset: %w", err)
			}
			rel++
			rel = (rel << 7) + int64(b&0x7f)
		}
		eh.baseOffset = entryOffset - rel
		if eh.baseOffset < 0 {
			return eh, fmt.Errorf("ofs-delta base offset %d out of range", eh.baseOffset)
		}
	case object.TypeRefDelta:
		eh.isRefDelta = true
		var idBuf [hash.Size]byte
		if _, err := io.ReadFull(br, idBuf[:]); err != nil {
			return eh, fmt.Errorf("reading ref-delta base id: %w", err)
		}
		eh.baseID = hash.ObjectID(idBuf)
	}

	return eh, nil
}

// Offsets walks the pack once, front to back, and returns the starting
// offset of every entry. Finding each entry's boundary requires running
// its zlib stream to completion (deflate streams are not byte-aligned
// any other way); the inflated bytes themselves are discarded here,
// only the consumed length is kept, so this pass is far cheaper than a
// full decode.
func (p *Pack) Offsets() ([]int64, error) {
	cr := &countingReader{r: io.NewSectionReader(p.file, 0, p.size)}
	br := bufio.NewReaderSize(cr, 32*1024)
	pos := func() int64 { return cr.n - int64(br.Buffered()) }

	if _, err := ReadHeader(br); err != nil {
		return nil, err
	}

	offsets := make([]int64, 0, p.header.Count)
	for i := uint32(0); i < p.header.Count; i++ {
		entryOffset := pos()
		offsets = append(offsets, entryOffset)

		eh, err := readEntryHeader(br, entryOffset)
		if err != nil {
			return nil, newDecodeError(entryOffset, err)
		}

		zr, err := zlib.NewReader(br)
		if err != nil {
			return nil, newDecodeError(entryOffset, fmt.Errorf("opening zlib stream: %w", err))
		}
		if _, err := io.Copy(io.Discard, zr); err != nil {
			return nil, newDecodeError(entryOffset, fmt.Errorf("inflating entry (kind=%s): %w", eh.kind, err))
		}
		zr.Close()
	}
	return offsets, nil
}

// decodeRaw inflates the entry at offset without resolving deltas,
// returning its header and (for delta entries) the raw delta
// instruction stream, or (for plain entries) the final object bytes.
func (p *Pack) decodeRaw(offset int64) (entryHeader, []byte, error) {
	sr := io.NewSectionReader(p.file, offset, p.size-offset)
	br := bufio.NewReaderSize(sr, 32*1024)

	eh, err := readEntryHeader(br, offset)
	if err != nil {
		return eh, nil, newDecodeError(offset, err)
	}

	zr, err := zlib.NewReader(br)
	if err != nil {
		return eh, nil, newDecodeError(offset, fmt.Errorf("opening zlib stream: %w", err))
	}
	defer zr.Close()

	buf := make([]byte, 0, eh.size)
	out := &growBuffer{buf: buf}
	if _, err := io.Copy(out, zr); err != nil {
		return eh, nil, newDecodeError(offset, fmt.Errorf("inflating entry (kind=%s): %w", eh.kind, err))
	}
	return eh, out.buf, nil
}

type growBuffer struct{ buf []byte }

func (g *growBuffer) Write(p []byte) (int, error) {
	g.buf = append(g.buf, p...)
	return len(p), nil
}

// DecodeAt fully resolves the object at offset, applying deltas against
// their base objects as needed. cache may be nil to skip memoization
// (each call then redoes any delta-chain work from scratch).
func (p *Pack) DecodeAt(offset int64, cache *DeltaCache) (Object, error) {
	if cache != nil {
		if obj, ok := cache.Get(offset); ok {
			return obj, nil
		}
	}

	eh, data, err := p.decodeRaw(offset)
	if err != nil {
		return Object{}, err
	}

	var result Object
	switch {
	case eh.isOfsDelta:
		base, err := p.DecodeAt(eh.baseOffset, cache)
		if err != nil {
			return Object{}, newDecodeError(offset, fmt.Errorf("resolving ofs-delta base at %d: %w", eh.baseOffset, err))
		}
		resolved, err := applyDelta(base.Data, data)
		if err != nil {
			return Object{}, newDecodeError(offset, err)
		}
		result = Object{Kind: base.Kind, Data: resolved}
	case eh.isRefDelta:
		baseOffset, err := p.offsetForID(eh.baseID, cache)
		if err != nil {
			return Object{}, newDecodeError(offset, err)
		}
		base, err := p.DecodeAt(baseOffset, cache)
		if err != nil {
			return Object{}, newDecodeError(offset, fmt.Errorf("resolving ref-delta base %s: %w", eh.baseID, err))
		}
		resolved, err := applyDelta(base.Data, data)
		if err != nil {
			return Object{}, newDecodeError(offset, err)
		}
		result = Object{Kind: base.Kind, Data: resolved}
	default:
		if !eh.kind.IsValid() {
			return Object{}, newDecodeError(offset, fmt.Errorf("invalid object kind %d", eh.kind))
		}
		if len(data) != eh.size {
			return Object{}, newDecodeError(offset, fmt.Errorf("inflated size mismatch: header says %d, got %d", eh.size, len(data)))
		}
		result = Object{Kind: eh.kind, Data: data}
	}

	if cache != nil {
		cache.Put(offset, result)
	}
	return result, nil
}

// offsetForID resolves a ref-delta base object id to a pack offset,
// building a full object-id index on first use.
func (p *Pack) offsetForID(id hash.ObjectID, cache *DeltaCache) (int64, error) {
	if p.objectIndex == nil {
		offsets, err := p.Offsets()
		if err != nil {
			return 0, fmt.Errorf("building object index for ref-delta resolution: %w", err)
		}
		idx := make(map[hash.ObjectID]int64, len(offsets))
		for _, off := range offsets {
			obj, err := p.DecodeAt(off, cache)
			if err != nil {
				return 0, fmt.Errorf("building object index for ref-delta resolution: %w", err)
			}
			idx[obj.ID()] = off
		}
		p.objectIndex = idx
	}
	off, ok := p.objectIndex[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnresolvableRefDelta, id)
	}
	return off, nil
}
