package schemas

import "errors"

// Error taxonomy. Callers wrap these with context and test with errors.Is.
var (
	// ErrSessionUnavailable means the browser cannot be reached. It triggers
	// recovery and only reaches the operator when recovery fails.
	ErrSessionUnavailable = errors.New("session unavailable")
	// ErrElementNotFound means a structural signature is absent on this page.
	ErrElementNotFound = errors.New("element not found")
	// ErrStaleElement means a node was used after its page navigated away.
	ErrStaleElement = errors.New("stale element reference")
	// ErrOracleUnavailable covers transport failures, timeouts and rate limits.
	ErrOracleUnavailable = errors.New("oracle unavailable")
	// ErrOracleResponseInvalid means the reply could not be turned into a valid decision.
	ErrOracleResponseInvalid = errors.New("oracle response invalid")
	// ErrInteractionFailed means every interaction strategy was exhausted.
	ErrInteractionFailed = errors.New("interaction failed")
	// ErrNavigationDrift means the anchor page could not be re-established.
	ErrNavigationDrift = errors.New("navigation drift")
)
