package harvest

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func pktLineRaw(data []byte) []byte {
	return append([]byte(hex4(len(data)+4)), data...)
}

func TestReadPackfileFromResponseSkipsNonPackfileSections(t *testing.T) {
	t.Parallel()

	var raw []byte
	raw = append(raw, pktLine("acknowledgments")...)
	raw = append(raw, pktLine("NAK")...)
	raw = append(raw, []byte("0001")...) // delimiter: next section follows
	raw = append(raw, pktLine("packfile")...)
	raw = append(raw, pktLineRaw(append([]byte{1}, []byte("PACKDATA")...))...)
	raw = append(raw, []byte("0000")...)

	var dest bytes.Buffer
	err := readPackfileFromResponse(context.Background(), bytes.NewReader(raw), &dest)
	require.NoError(t, err)
	require.Equal(t, "PACKDATA", dest.String())
}

func TestReadPackfileFromResponseFatalSideband(t *testing.T) {
	t.Parallel()

	var raw []byte
	raw = append(raw, pktLine("packfile")...)
	raw = append(raw, pktLineRaw(append([]byte{3}, []byte("upstream exploded")...))...)

	var dest bytes.Buffer
	err := readPackfileFromResponse(context.Background(), bytes.NewReader(raw), &dest)
	require.Error(t, err)
	var sbErr *SidebandError
	require.ErrorAs(t, err, &sbErr)
	require.Equal(t, "upstream exploded", sbErr.Message)
}

func TestReadPackfileFromResponseMissingSection(t *testing.T) {
	t.Parallel()

	var dest bytes.Buffer
	err := readPackfileFromResponse(context.Background(), bytes.NewReader(nil), &dest)
	require.ErrorIs(t, err, ErrMissingPackfileSection)
}
