package audio

import "fmt"

// MicrophoneAccessError reports that no input stream could be acquired,
// either because permission was denied or no capture device exists.
type MicrophoneAccessError struct {
	Op  string
	Err error
}

func (e *MicrophoneAccessError) Error() string {
	return fmt.Sprintf("microphone %s failed: %v", e.Op, e.Err)
}

func (e *MicrophoneAccessError) Unwrap() error {
	return e.Err
}
