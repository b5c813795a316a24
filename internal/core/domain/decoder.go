package domain

import "strings"

// DecoderReason is the terminal condition reported by the scan collaborator.
type DecoderReason string

const (
	DecoderPermissionDenied DecoderReason = "permission-denied"
	DecoderNotFound         DecoderReason = "not-found"
	DecoderDeviceBusy       DecoderReason = "device-busy"
	DecoderInsecureContext  DecoderReason = "insecure-context"
	DecoderUnknown          DecoderReason = "unknown"
)

func ParseDecoderReason(raw string) DecoderReason {
	switch DecoderReason(strings.ToLower(strings.TrimSpace(raw))) {
	case DecoderPermissionDenied:
		return DecoderPermissionDenied
	case DecoderNotFound:
		return DecoderNotFound
	case DecoderDeviceBusy:
		return DecoderDeviceBusy
	case DecoderInsecureContext:
		return DecoderInsecureContext
	default:
		return DecoderUnknown
	}
}

// Message is the operator-facing explanation of the reason.
func (r DecoderReason) Message() string {
	switch r {
	case DecoderPermissionDenied:
		return "Camera permission denied. Please check your browser settings."
	case DecoderNotFound:
		return "No camera found on this device."
	case DecoderDeviceBusy:
		return "Camera is currently in use by another app or not accessible."
	case DecoderInsecureContext:
		return "Scanner requires a secure context (HTTPS)."
	default:
		return "Failed to start camera."
	}
}

type DecoderError struct {
	Reason DecoderReason
}

func (e *DecoderError) Error() string {
	return string(e.Reason) + ": " + e.Reason.Message()
}

func (e *DecoderError) Unwrap() error {
	return ErrDecoder
}
