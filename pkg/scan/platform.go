package scan

// Grant is a permission required before discovery may proceed.
type Grant string

// The available grants.
const (
	GrantRadio    Grant = "radio"
	GrantLocation Grant = "location"
)

// Grants lists all grants required to start a scan.
var Grants = []Grant{GrantRadio, GrantLocation}

// Radio is the platform radio used for discovery.
type Radio interface {
	// Present returns whether a discovery capable radio exists.
	Present() bool

	// Enabled returns whether the radio is currently enabled.
	Enabled() bool

	// RequestEnable asks the platform to enable the radio. The done callback
	// is called asynchronously with the outcome.
	RequestEnable(done func(error))

	// Discover begins a discovery session and calls fn for every found peer
	// until the returned stop function is called.
	Discover(fn func(Event)) (stop func(), err error)
}

// Authorizer is the platform authorization service.
type Authorizer interface {
	// Granted returns whether the grant is currently held.
	Granted(Grant) bool

	// Request asynchronously requests the grant and calls fn exactly once
	// with the result.
	Request(g Grant, fn func(granted bool))
}
