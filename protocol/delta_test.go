package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeltaHeaderSize(t *testing.T) {
	t.Parallel()

	testcases := map[string]struct {
		input        []byte
		wantSize     int
		wantConsumed int
		wantErr      bool
	}{
		"single byte": {
			input:        []byte{0x1e},
			wantSize:     30,
			wantConsumed: 1,
		},
		"two bytes": {
			// 0xa0 0x02 -> low7=0x20, continuation; next byte 0x02<<7=256; total 256+32=288
			input:        []byte{0xa0, 0x02},
			wantSize:     288,
			wantConsumed: 2,
		},
		"truncated": {
			input:   []byte{0x80},
			wantErr: true,
		},
	}

	for name, tc := range testcases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			size, consumed, err := deltaHeaderSize(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantSize, size)
			require.Equal(t, tc.wantConsumed, consumed)
		})
	}
}

func TestApplyDelta(t *testing.T) {
	t.Parallel()

	base := []byte("Hello, World! This is a test.")
	// copy base[0:7] "Hello, " + insert "Go " + copy base[7:29] "World! This is a test."
	delta := []byte{
		0x1d, 0x20, // base size 29, target size 32
		0x90, 0x07, // copy: offset omitted (0), size byte present = 7
		0x03, 'G', 'o', ' ', // insert 3 literal bytes
		0x91, 0x07, 0x16, // copy: offset=7, size=22
	}

	got, err := applyDelta(base, delta)
	require.NoError(t, err)
	require.Equal(t, "Hello, Go World! This is a test.", string(got))
}

func TestApplyDeltaErrors(t *testing.T) {
	t.Parallel()

	base := []byte("0123456789")

	testcases := map[string]struct {
		delta []byte
	}{
		"base size mismatch": {
			delta: []byte{0x05, 0x00},
		},
		"copy out of bounds": {
			delta: []byte{0x0a, 0x14, 0x91, 0x00, 0xff},
		},
		"truncated insert": {
			delta: []byte{0x0a, 0x05, 0x05, 'a', 'b'},
		},
		"target size mismatch": {
			delta: []byte{0x0a, 0x05, 0x01, 'a'},
		},
	}

	for name, tc := range testcases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := applyDelta(base, tc.delta)
			require.Error(t, err)
		})
	}
}
