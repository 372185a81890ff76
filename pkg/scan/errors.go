package scan

import "errors"

// The error kinds surfaced by the workflow.
var (
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	ErrRadioDisabled         = errors.New("radio disabled")
	ErrAuthorizationDenied   = errors.New("authorization denied")
	ErrMalformedEvent        = errors.New("malformed event")
	ErrDiscoveryFailed       = errors.New("discovery failed")
)

// Notice is a one-line, non-blocking message for the user.
type Notice struct {
	Err  error
	Text string
}

// Is returns whether the notice was caused by the specified error kind.
func (n Notice) Is(kind error) bool {
	return errors.Is(n.Err, kind)
}

func (n Notice) String() string {
	return n.Text
}
