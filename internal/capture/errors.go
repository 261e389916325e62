package capture

import (
	"errors"
	"fmt"
)

// ErrDeviceUnavailable means no usable input device exists. It is the only
// fatal capture error and is returned from Initialize.
var ErrDeviceUnavailable = errors.New("audio input device unavailable")

// ErrNotInitialized is returned by Start before a device was resolved
var ErrNotInitialized = errors.New("capture engine not initialized")

// CaptureIOError reports a storage failure on one slot. The chunk it names is
// dropped; capture itself continues.
type CaptureIOError struct {
	Op   string // "open", "encode", "close"
	Slot int
	Seq  int
	Path string
	Err  error
}

func (e *CaptureIOError) Error() string {
	return fmt.Sprintf("capture %s failed for slot %d chunk %d (%s): %v", e.Op, e.Slot, e.Seq, e.Path, e.Err)
}

func (e *CaptureIOError) Unwrap() error {
	return e.Err
}
