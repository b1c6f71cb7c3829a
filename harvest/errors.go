package harvest

import "errors"

// ErrMalformedAdvertisement is returned when the info/refs response
// doesn't contain the expected service-announcement flush boundary.
var ErrMalformedAdvertisement = errors.New("harvest: malformed ref advertisement")

// ErrMissingPackfileSection is returned when a protocol v2 fetch
// response never produces a "packfile" section before the response
// ends.
var ErrMissingPackfileSection = errors.New("harvest: fetch response has no packfile section")

// SidebandError wraps a fatal message sent on sideband channel 3 by
// the upstream server while streaming a packfile.
type SidebandError struct {
	Message string
}

func (e *SidebandError) Error() string {
	return "harvest: upstream reported a fatal error: " + e.Message
}
