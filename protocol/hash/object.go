package hash

import (
	"crypto/sha1" //nolint:gosec // git object ids are SHA-1 by design
	"strconv"

	"github.com/ArcticLampyrid/aurmetad/protocol/object"
)

// Object computes the canonical git object id: the SHA-1 of the
// header-prefixed serialization "<type> <length>\0<data>".
//
// See: https://git-scm.com/book/en/v2/Git-Internals-Git-Objects
func Object(kind object.Type, data []byte) ObjectID {
	h := NewHasher(kind, len(data))
	h.Write(data) //nolint:errcheck // hash.Hash.Write never errors
	var id ObjectID
	h.Sum(id[:0])
	return id
}

// Hasher wraps a running SHA-1 computation that has already been primed
// with a git object header, so the caller only has to write the content.
type Hasher struct {
	h interface {
		Write(p []byte) (int, error)
		Sum(b []byte) []byte
	}
}

// NewHasher creates a Hasher primed with the git object header for an
// object of the given type and content length.
func NewHasher(kind object.Type, size int) Hasher {
	h := sha1.New() //nolint:gosec
	h.Write(kind.Bytes())
	h.Write([]byte(" "))
	h.Write([]byte(strconv.Itoa(size)))
	h.Write([]byte{0})
	return Hasher{h: h}
}

// Write feeds object content into the hash.
func (h Hasher) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

// Sum appends the current hash to b and returns the resulting slice.
func (h Hasher) Sum(b []byte) []byte {
	return h.h.Sum(b)
}
