package model

import "encoding/json"

// CameraState is the acquisition state of the camera controller.
type CameraState int

const (
	CameraIdle CameraState = iota
	CameraRequesting
	CameraActive
	CameraError
)

func (s CameraState) String() string {
	switch s {
	case CameraIdle:
		return "idle"
	case CameraRequesting:
		return "requesting"
	case CameraActive:
		return "active"
	case CameraError:
		return "error"
	default:
		return "unknown"
	}
}

func (s CameraState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Facing selects the physical camera.
type Facing int

const (
	FacingFront Facing = iota
	FacingBack
)

// Opposite returns the other camera.
func (f Facing) Opposite() Facing {
	if f == FacingFront {
		return FacingBack
	}
	return FacingFront
}

// String returns the media-constraints name of the facing mode.
func (f Facing) String() string {
	if f == FacingBack {
		return "environment"
	}
	return "user"
}

func (f Facing) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// ErrorReason classifies camera failures.
type ErrorReason string

const (
	ReasonNone                      ErrorReason = ""
	ReasonUnsupportedEnvironment    ErrorReason = "unsupported_environment"
	ReasonPermissionDenied          ErrorReason = "permission_denied"
	ReasonDeviceNotFound            ErrorReason = "device_not_found"
	ReasonDeviceBusy                ErrorReason = "device_busy"
	ReasonConstraintsNotSatisfiable ErrorReason = "constraints_not_satisfiable"
	ReasonTimeout                   ErrorReason = "timeout"
	ReasonCaptureNotReady           ErrorReason = "capture_not_ready"
	ReasonUnknown                   ErrorReason = "unknown"
)

// CameraStatus is the snapshot published on every camera transition.
type CameraStatus struct {
	State    CameraState `json:"state"`
	Facing   Facing      `json:"facing"`
	Detail   string      `json:"detail,omitempty"`
	Reason   ErrorReason `json:"reason,omitempty"`
	Fallback bool        `json:"fallback,omitempty"`
}
