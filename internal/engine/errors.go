package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrAudioUnavailable means the output could not be constructed; callers
	// should retry Init on the next user gesture.
	ErrAudioUnavailable = errors.New("audio system unavailable")

	// ErrNotReady means a load or play was attempted before Init succeeded.
	ErrNotReady = errors.New("audio engine not initialized")

	// ErrUnknownSound means the requested name is not in the catalog.
	ErrUnknownSound = errors.New("unknown sound")
)

// FetchError reports a failed sound download. Status is the HTTP status code
// when the response arrived but was not OK, zero otherwise.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DecodeError reports a payload that could not be decoded as audio.
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
