package protocol_test

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ArcticLampyrid/aurmetad/protocol"
)

func TestFormatPacks(t *testing.T) {
	t.Parallel()

	testcases := map[string]struct {
		input    []protocol.Pack
		expected []byte
		wantErr  error
	}{
		"empty": {
			input:    []protocol.Pack{},
			expected: []byte("0000"),
		},
		"a + LF": {
			input:    []protocol.Pack{protocol.PackLine("a\n")},
			expected: []byte("0006a\n0000"),
		},
		"a": {
			input:    []protocol.Pack{protocol.PackLine("a")},
			expected: []byte("0005a0000"),
		},
		"empty line": {
			input:    []protocol.Pack{protocol.PackLine("")},
			expected: []byte("00040000"),
		},
		"flush packet input is not duplicated": {
			input:    []protocol.Pack{protocol.FlushPacket},
			expected: []byte("0000"),
		},
		"delimiter packet input": {
			input:    []protocol.Pack{protocol.DelimiterPacket},
			expected: []byte("00010000"),
		},
		"response end packet input": {
			input:    []protocol.Pack{protocol.ResponseEndPacket},
			expected: []byte("00020000"),
		},
		"data too large": {
			input: []protocol.Pack{
				protocol.PackLine(make([]byte, protocol.MaxPktLineDataSize+1)),
			},
			wantErr: protocol.ErrDataTooLarge,
		},
		"exact max size": {
			input: []protocol.Pack{
				protocol.PackLine(make([]byte, protocol.MaxPktLineDataSize)),
			},
			expected: append(
				[]byte(fmt.Sprintf("%04x", protocol.MaxPktLineDataSize+4)),
				append(make([]byte, protocol.MaxPktLineDataSize), []byte("0000")...)...,
			),
		},
	}

	for name, tc := range testcases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			actual, err := protocol.FormatPacks(tc.input...)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, actual)
		})
	}
}

func TestScannerNext(t *testing.T) {
	t.Parallel()

	testcases := map[string]struct {
		input     []byte
		wantKinds []protocol.LineKind
		wantData  [][]byte
		wantErr   error
	}{
		"data then flush": {
			input:     []byte("0005a0000"),
			wantKinds: []protocol.LineKind{protocol.LineData, protocol.LineFlush},
			wantData:  [][]byte{[]byte("a"), nil},
		},
		"delimiter": {
			input:     []byte("0001"),
			wantKinds: []protocol.LineKind{protocol.LineDelim},
			wantData:  [][]byte{nil},
		},
		"response end": {
			input:     []byte("0002"),
			wantKinds: []protocol.LineKind{protocol.LineResponseEnd},
			wantData:  [][]byte{nil},
		},
		"reserved length 0003": {
			input:   []byte("0003"),
			wantErr: protocol.ErrWireFraming,
		},
		"truncated payload": {
			input:   []byte("0010ab"),
			wantErr: protocol.ErrWireFraming,
		},
		"non-hex length": {
			input:   []byte("zzzz"),
			wantErr: protocol.ErrWireFraming,
		},
	}

	for name, tc := range testcases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := protocol.NewScanner(bytes.NewReader(tc.input))

			if tc.wantErr != nil {
				_, _, err := s.Next()
				require.ErrorIs(t, err, tc.wantErr)
				return
			}

			for i, wantKind := range tc.wantKinds {
				kind, data, err := s.Next()
				require.NoError(t, err)
				require.Equal(t, wantKind, kind)
				require.Equal(t, tc.wantData[i], data)
			}
			_, _, err := s.Next()
			require.ErrorIs(t, err, io.EOF)
		})
	}
}
