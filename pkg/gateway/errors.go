package gateway

import "fmt"

// InstallError is returned when a seed resource could not be pre-cached.
// The generation is not activated.
type InstallError struct {
	Resource string
	Err      error
}

// Error implements the error interface.
func (e *InstallError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("install failed: %v", e.Err)
	}
	return fmt.Sprintf("install failed: seed %s: %v", e.Resource, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *InstallError) Unwrap() error {
	return e.Err
}

// NetworkError is returned by Intercept when the live fetch failed and no
// cached shell document was available as a fallback.
type NetworkError struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("network request %s failed with no offline fallback: %v", e.URL, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *NetworkError) Unwrap() error {
	return e.Err
}
