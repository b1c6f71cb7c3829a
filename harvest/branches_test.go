package harvest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ArcticLampyrid/aurmetad/protocol/hash"
)

func TestParseBranchAdvertisement(t *testing.T) {
	t.Parallel()

	commitA := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	commitB := "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	commitMain := "cccccccccccccccccccccccccccccccccccccccc"[:40]

	var raw []byte
	raw = append(raw, []byte("001e# service=git-upload-pack\n0000")...)
	raw = append(raw, pktLine(commitA+" HEAD\x00multi_ack thin-pack side-band")...)
	raw = append(raw, pktLine(commitA+" refs/heads/aws-cli")...)
	raw = append(raw, pktLine(commitB+" refs/heads/zoom")...)
	raw = append(raw, pktLine(commitMain+" refs/heads/main")...)
	raw = append(raw, []byte("0000")...)

	branches, err := parseBranchAdvertisement(raw)
	require.NoError(t, err)
	require.Equal(t, BranchMap{
		"aws-cli": hash.MustFromHex(commitA),
		"zoom":    hash.MustFromHex(commitB),
	}, branches)
}

func TestParseBranchAdvertisementMissingFlush(t *testing.T) {
	t.Parallel()

	raw := pktLine("# service=git-upload-pack")
	_, err := parseBranchAdvertisement(raw)
	require.ErrorIs(t, err, ErrMalformedAdvertisement)
}

func pktLine(s string) []byte {
	b := []byte(s + "\n")
	return append([]byte(hex4(len(b)+4)), b...)
}

func hex4(n int) string {
	const hexDigits = "0123456789abcdef"
	return string([]byte{
		hexDigits[(n>>12)&0xf],
		hexDigits[(n>>8)&0xf],
		hexDigits[(n>>4)&0xf],
		hexDigits[n&0xf],
	})
}
