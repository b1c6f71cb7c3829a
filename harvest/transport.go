package harvest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ArcticLampyrid/aurmetad/log"
	"github.com/ArcticLampyrid/aurmetad/protocol"
)

// sideband channels, per https://git-scm.com/docs/protocol-v2#_packfile
const (
	sidebandData     = 1
	sidebandProgress = 2
	sidebandFatal    = 3
)

// readPackfileFromResponse walks the section-delimited body of a
// protocol v2 fetch response, skipping any section other than
// "packfile" (such as "acknowledgments"), and copies the demultiplexed
// sideband-1 payload of the packfile section to dest. Sideband-2
// progress messages are logged; a sideband-3 message aborts with a
// SidebandError.
func readPackfileFromResponse(ctx context.Context, r io.Reader, dest io.Writer) error {
	s := protocol.NewScanner(r)
	logger := log.FromContext(ctx)

	for {
		kind, data, err := s.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrMissingPackfileSection
			}
			return fmt.Errorf("harvest: reading section header: %w", err)
		}
		if kind != protocol.LineData {
			return fmt.Errorf("%w: unexpected boundary before section header", ErrMissingPackfileSection)
		}

		section := strings.TrimSpace(string(data))
		if section != "packfile" {
			if err := skipSection(s); err != nil {
				return err
			}
			continue
		}
		return copySidebandData(s, dest, logger)
	}
}

// skipSection discards the remainder of a non-packfile section, up to
// its terminating boundary packet (or the end of the response).
func skipSection(s *protocol.Scanner) error {
	for {
		kind, _, err := s.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("harvest: skipping section: %w", err)
		}
		if kind != protocol.LineData {
			return nil
		}
	}
}

// copySidebandData reads sideband-multiplexed packet lines until the
// section's terminating boundary, writing channel-1 payload to dest.
func copySidebandData(s *protocol.Scanner, dest io.Writer, logger log.Logger) error {
	for {
		kind, data, err := s.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("harvest: reading packfile section: %w", err)
		}
		if kind != protocol.LineData {
			return nil
		}
		if len(data) == 0 {
			continue
		}

		channel, payload := data[0], data[1:]
		switch channel {
		case sidebandData:
			if _, err := dest.Write(payload); err != nil {
				return fmt.Errorf("harvest: writing packfile data: %w", err)
			}
		case sidebandProgress:
			logger.Debug("upload-pack progress", "message", string(payload))
		case sidebandFatal:
			return &SidebandError{Message: string(payload)}
		default:
			return fmt.Errorf("harvest: unknown sideband channel %d", channel)
		}
	}
}
