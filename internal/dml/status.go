package dml

import "errors"

// Engine failures fall into two categories. Resource exhaustion is
// recoverable: it is reported to the next Flush caller and then cleared, and
// later submissions may succeed. Device removal is fatal and sticky: once
// observed, recording is skipped forever and only status/event queries are
// served, because no consistent GPU state is reachable past that point.
var (
	// ErrResourceExhausted indicates the driver ran out of memory while
	// closing a command list.
	ErrResourceExhausted = errors.New("dml: out of memory closing the command list")

	// ErrDeviceRemoved indicates the device was lost (hardware fault, driver
	// crash, TDR). Permanent.
	ErrDeviceRemoved = errors.New("dml: device removed")
)

// isFatalStatus reports whether err can never be cleared.
func isFatalStatus(err error) bool {
	return errors.Is(err, ErrDeviceRemoved)
}
