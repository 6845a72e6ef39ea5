package device

import "github.com/nerrad567/meshgate-core/internal/apperr"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is(), and carry an apperr.Kind
// for the HTTP layer:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = apperr.E(apperr.KindNotFound, "device: not found")

	// ErrUnauthorized is returned when a registration key does not resolve
	// to an active gateway.
	ErrUnauthorized = apperr.E(apperr.KindUnauthorized, "device: invalid api key or inactive gateway")

	// ErrNoDevices is returned when a registration carries no device list.
	ErrNoDevices = apperr.E(apperr.KindInvalidInput, "device: device list is empty")

	// ErrInvalidDescription is returned when a description is blank.
	ErrInvalidDescription = apperr.E(apperr.KindInvalidInput, "device: description is required")
)
