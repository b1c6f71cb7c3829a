package protocol

import (
	"errors"
	"fmt"

	"github.com/ArcticLampyrid/aurmetad/protocol/hash"
)

// ErrPackDecode is the sentinel wrapped by every packfile decoding
// failure: a malformed entry header, an inflate failure, or an
// unresolvable or malformed delta. The pack's trailing SHA-1 checksum
// is not verified.
var ErrPackDecode = errors.New("protocol: packfile decode error")

// PackDecodeError carries the pack-relative offset of the failing entry
// alongside the underlying cause.
type PackDecodeError struct {
	Offset int64
	Err    error
}

func (e *PackDecodeError) Error() string {
	return fmt.Sprintf("protocol: decode entry at offset %d: %v", e.Offset, e.Err)
}

func (e *PackDecodeError) Unwrap() error { return ErrPackDecode }

// Cause returns the specific underlying error, distinct from the
// ErrPackDecode sentinel Unwrap returns, so callers can inspect detail
// without losing errors.Is(err, ErrPackDecode) compatibility.
func (e *PackDecodeError) Cause() error { return e.Err }

func newDecodeError(offset int64, err error) error {
	return &PackDecodeError{Offset: offset, Err: err}
}

// ErrUnresolvableRefDelta is returned when a ref-delta's base object id
// cannot be located anywhere in the pack. Per the target workload (AUR
// mirror packs), this is not expected to occur; ofs-delta is the only
// delta form the upstream servers actually send.
var ErrUnresolvableRefDelta = errors.New("protocol: ref-delta base object not found in pack")

// HashMismatchError describes a decoded object whose SHA-1 over its
// canonical serialization doesn't match an expected value. Nothing in
// this package returns it: DecodeAt does not compare decoded ids
// against expected ones.
type HashMismatchError struct {
	Offset   int64
	Got      hash.ObjectID
	Expected hash.ObjectID
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("protocol: object at offset %d hashes to %s, expected %s", e.Offset, e.Got, e.Expected)
}

func (e *HashMismatchError) Unwrap() error { return ErrPackDecode }
