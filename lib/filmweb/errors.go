package filmweb

import "fmt"

// AuthenticationError means the token exchange itself was rejected. It is
// never retried; the long-lived secret is wrong or revoked.
type AuthenticationError struct {
	Err error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("filmweb: authentication failed: %v", e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// TransientFetchError means the per-call timeout budget was exhausted. A
// later full run is safe to retry.
type TransientFetchError struct {
	Attempts int
	Err      error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("filmweb: request timed out after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// FetchError is any other remote rejection. Status and Body carry the
// remote response for diagnostics; Err is set instead when the transport
// failed without producing a response.
type FetchError struct {
	Status int
	Body   string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("filmweb: request failed: %v", e.Err)
	}
	return fmt.Sprintf("filmweb: remote returned status %d: %s", e.Status, e.Body)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MappingError means a payload decoded but did not have the expected
// shape, e.g. a required field was absent.
type MappingError struct {
	Entity string
	Reason string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("filmweb: cannot map %s payload: %s", e.Entity, e.Reason)
}
