package camera

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"deepfakedetector/internal/model"
)

// Reason codes reported by device backends. Browsers and older WebRTC
// stacks use different names for the same failure.
const (
	NameNotAllowed       = "NotAllowedError"
	NamePermissionDenied = "PermissionDeniedError"
	NameNotFound         = "NotFoundError"
	NameDevicesNotFound  = "DevicesNotFoundError"
	NameNotReadable      = "NotReadableError"
	NameTrackStart       = "TrackStartError"
	NameOverconstrained  = "OverconstrainedError"
	NamePlaybackTimeout  = "TimeoutError"
)

// DeviceError is a failure reported by the device primitive.
type DeviceError struct {
	Name    string
	Message string
	Err     error
}

func (e *DeviceError) Error() string {
	if e.Message == "" {
		return e.Name
	}
	return e.Name + ": " + e.Message
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Error is a classified camera failure carrying the message shown to the user.
type Error struct {
	Reason   model.ErrorReason
	Message  string
	Fallback bool // the minimal-constraints fallback was tried and failed
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("camera: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("camera: %s", e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Reason so callers can compare against the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Reason == e.Reason
}

var (
	ErrUnsupportedEnvironment    = &Error{Reason: model.ReasonUnsupportedEnvironment}
	ErrPermissionDenied          = &Error{Reason: model.ReasonPermissionDenied}
	ErrDeviceNotFound            = &Error{Reason: model.ReasonDeviceNotFound}
	ErrDeviceBusy                = &Error{Reason: model.ReasonDeviceBusy}
	ErrConstraintsNotSatisfiable = &Error{Reason: model.ReasonConstraintsNotSatisfiable}
	ErrTimeout                   = &Error{Reason: model.ReasonTimeout}
	ErrCaptureNotReady           = &Error{Reason: model.ReasonCaptureNotReady}
	ErrUnknown                   = &Error{Reason: model.ReasonUnknown}

	// ErrAcquisitionInProgress is returned by Start while a request is pending.
	ErrAcquisitionInProgress = errors.New("camera: acquisition already in progress")
	// ErrAborted is returned when Stop or Flip overtook a pending acquisition.
	ErrAborted = errors.New("camera: acquisition aborted")
)

// User-facing messages.
const (
	msgUnsupported     = "Camera not supported in this environment. No video capture backend is available."
	msgPermission      = "Camera access denied. Please enable camera permissions and try again."
	msgNotFound        = "No camera found. Please connect a camera and try again."
	msgBusy            = "Camera is already in use by another application. Please close other apps and try again."
	msgConstraints     = "Camera does not meet requirements. Trying with default settings..."
	msgTimeout         = "Unable to access camera. Video load timeout."
	msgUnknownPrefix   = "Unable to access camera. "
	msgFallbackFailed  = "Unable to start camera with any settings. Please check your camera permissions."
	msgNoStream        = "Camera stream not available."
	msgNotReady        = "Camera not ready. Please wait for the video feed to load."
	msgEncodeFailed    = "Unable to capture frame from camera."
	msgUnknownFallback = "Unknown error occurred."
)

// Classify maps a device failure onto the camera error taxonomy. Reason codes
// win; errors without one are matched on their message.
func Classify(err error) model.ErrorReason {
	if err == nil {
		return model.ReasonNone
	}

	var ce *Error
	if errors.As(err, &ce) {
		return ce.Reason
	}

	var de *DeviceError
	if errors.As(err, &de) {
		if reason, ok := classifyName(de.Name); ok {
			return reason
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return model.ReasonTimeout
	}

	return classifyMessage(strings.ToLower(err.Error()))
}

func classifyName(name string) (model.ErrorReason, bool) {
	switch name {
	case NameNotAllowed, NamePermissionDenied:
		return model.ReasonPermissionDenied, true
	case NameNotFound, NameDevicesNotFound:
		return model.ReasonDeviceNotFound, true
	case NameNotReadable, NameTrackStart:
		return model.ReasonDeviceBusy, true
	case NameOverconstrained:
		return model.ReasonConstraintsNotSatisfiable, true
	case NamePlaybackTimeout:
		return model.ReasonTimeout, true
	case "":
		return "", false
	default:
		return model.ReasonUnknown, true
	}
}

var messageKeywords = []struct {
	reason   model.ErrorReason
	keywords []string
}{
	{model.ReasonPermissionDenied, []string{"permission", "not allowed", "access denied", "operation not permitted"}},
	{model.ReasonDeviceBusy, []string{"busy", "in use", "not readable"}},
	{model.ReasonConstraintsNotSatisfiable, []string{"overconstrained", "constraint", "unsupported resolution", "cannot set"}},
	{model.ReasonDeviceNotFound, []string{"not found", "no such device", "no camera", "can't open", "cannot open"}},
	{model.ReasonTimeout, []string{"timeout", "timed out"}},
}

func classifyMessage(msg string) model.ErrorReason {
	for _, group := range messageKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(msg, kw) {
				return group.reason
			}
		}
	}
	return model.ReasonUnknown
}

// newError builds the classified error for an acquisition failure.
func newError(reason model.ErrorReason, cause error) *Error {
	e := &Error{Reason: reason, Err: cause}
	switch reason {
	case model.ReasonUnsupportedEnvironment:
		e.Message = msgUnsupported
	case model.ReasonPermissionDenied:
		e.Message = msgPermission
	case model.ReasonDeviceNotFound:
		e.Message = msgNotFound
	case model.ReasonDeviceBusy:
		e.Message = msgBusy
	case model.ReasonConstraintsNotSatisfiable:
		e.Message = msgConstraints
	case model.ReasonTimeout:
		e.Message = msgTimeout
	case model.ReasonCaptureNotReady:
		e.Message = msgNotReady
	default:
		detail := msgUnknownFallback
		var de *DeviceError
		switch {
		case errors.As(cause, &de) && de.Message != "":
			detail = de.Message
		case cause != nil:
			detail = cause.Error()
		}
		e.Message = msgUnknownPrefix + detail
	}
	return e
}
