package deployment

import (
	"fmt"
	"strconv"
)

// =============================================================================
// Health Status (Pure Functions)
// =============================================================================

// Status is the observed outcome of a health probe: a three digit HTTP status
// code, or StatusUnreachable when no response arrived within the timeout.
type Status string

const (
	// StatusUnreachable is reported for transport failures and timeouts.
	StatusUnreachable Status = "000"

	// StatusOK is the status a rollback target must report.
	StatusOK Status = "200"
)

// ParseStatus validates an expected status such as "200".
func ParseStatus(s string) (Status, error) {
	code, err := strconv.Atoi(s)
	if err != nil || len(s) != 3 || code < 100 || code > 599 {
		return "", fmt.Errorf("%w: expected status %q is not an HTTP status code", ErrValidation, s)
	}
	return Status(s), nil
}

// StatusFromCode converts an HTTP response code to a Status.
func StatusFromCode(code int) Status {
	return Status(fmt.Sprintf("%03d", code))
}

// Healthy reports whether observed satisfies expected. Unreachable never does.
func Healthy(expected, observed Status) bool {
	return observed != StatusUnreachable && observed == expected
}
