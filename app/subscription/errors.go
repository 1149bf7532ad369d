package subscription

import "fmt"

// FetchError reports a failed network retrieval: transport failure, timeout,
// or an empty body after all applicable fallbacks.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("failed to fetch subscription %s", e.URL)
	}
	return fmt.Sprintf("failed to fetch subscription %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// DecodeError reports a payload that is present but not decodable as a legacy
// subscription list, or that decodes to empty content.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("failed to decode subscription: %s", e.Reason)
	}
	return fmt.Sprintf("failed to decode subscription: %s: %v", e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// UnsupportedTypeError reports a declared subscription type outside the
// recognized enum.
type UnsupportedTypeError struct {
	Type string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported subscription type '%s'", e.Type)
}
