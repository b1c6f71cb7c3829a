package protocol

import (
	"errors"
	"fmt"
)

// ErrDeltaFraming is returned when a delta instruction stream is
// truncated or its copy/insert opcodes don't add up to the base/result
// sizes declared in the delta header.
var ErrDeltaFraming = errors.New("protocol: malformed delta instruction stream")

// deltaHeaderSize reads one of the two varint-encoded size fields
// (source size, then target size) that precede a delta's instruction
// stream. It returns the decoded size and the number of bytes consumed.
//
// Encoding: a sequence of bytes, little-endian 7-bit groups, MSB set on
// every byte but the last.
func deltaHeaderSize(delta []byte) (size int, consumed int, err error) {
	var shift uint
	for {
		if consumed >= len(delta) {
			return 0, 0, fmt.Errorf("%w: truncated size header", ErrDeltaFraming)
		}
		b := delta[consumed]
		consumed++
		size |= int(b&0x7f) << shift
		if b&0x80 == 0 {
			return size, consumed, nil
		}
		shift += 7
	}
}

// applyDelta reconstructs a target object by replaying a delta
// instruction stream against base.
//
// The stream opens with two varint sizes (expected base size, expected
// target size), then a sequence of instructions:
//
//   - Copy: MSB of the opcode byte is set. The remaining 7 bits are a
//     bitmask selecting which of up to 4 offset bytes and 3 size bytes
//     follow, little-endian. A zero size field means 0x10000.
//   - Insert: MSB clear. The opcode byte itself is the literal length
//     (1-127), followed by that many literal bytes to append.
//
// See: https://git-scm.com/docs/pack-format#_deltified_representation
func applyDelta(base, delta []byte) ([]byte, error) {
	baseSize, n, err := deltaHeaderSize(delta)
	if err != nil {
		return nil, fmt.Errorf("delta base size: %w", err)
	}
	delta = delta[n:]
	if baseSize != len(base) {
		return nil, fmt.Errorf("%w: base size mismatch: header says %d, have %d", ErrDeltaFraming, baseSize, len(base))
	}

	targetSize, n, err := deltaHeaderSize(delta)
	if err != nil {
		return nil, fmt.Errorf("delta target size: %w", err)
	}
	delta = delta[n:]

	out := make([]byte, 0, targetSize)
	for len(delta) > 0 {
		op := delta[0]
		delta = delta[1:]

		if op&0x80 != 0 {
			var copyOffset, copySize int
			for i := 0; i < 4; i++ {
				if op&(1<<uint(i)) != 0 {
					if len(delta) == 0 {
						return nil, fmt.Errorf("%w: truncated copy offset", ErrDeltaFraming)
					}
					copyOffset |= int(delta[0]) << uint(8*i)
					delta = delta[1:]
				}
			}
			for i := 0; i < 3; i++ {
				if op&(1<<uint(4+i)) != 0 {
					if len(delta) == 0 {
						return nil, fmt.Errorf("%w: truncated copy size", ErrDeltaFraming)
					}
					copySize |= int(delta[0]) << uint(8*i)
					delta = delta[1:]
				}
			}
			if copySize == 0 {
				copySize = 0x10000
			}
			if copyOffset < 0 || copySize < 0 || copyOffset+copySize > len(base) {
				return nil, fmt.Errorf("%w: copy instruction out of bounds (offset=%d size=%d base=%d)", ErrDeltaFraming, copyOffset, copySize, len(base))
			}
			out = append(out, base[copyOffset:copyOffset+copySize]...)
			continue
		}

		if op == 0 {
			return nil, fmt.Errorf("%w: reserved zero opcode", ErrDeltaFraming)
		}
		insertSize := int(op)
		if len(delta) < insertSize {
			return nil, fmt.Errorf("%w: truncated insert payload", ErrDeltaFraming)
		}
		out = append(out, delta[:insertSize]...)
		delta = delta[insertSize:]
	}

	if len(out) != targetSize {
		return nil, fmt.Errorf("%w: target size mismatch: header says %d, produced %d", ErrDeltaFraming, targetSize, len(out))
	}
	return out, nil
}
