package gateway

import "github.com/nerrad567/meshgate-core/internal/apperr"

// Domain errors for the gateway package.
var (
	// ErrGatewayNotFound is returned when a gateway ID does not exist.
	ErrGatewayNotFound = apperr.E(apperr.KindNotFound, "gateway: not found")

	// ErrInvalidName is returned when a gateway name is blank or too long.
	ErrInvalidName = apperr.E(apperr.KindInvalidInput, "gateway: invalid name")

	// ErrInvalidID is returned when an operation is given an empty ID.
	ErrInvalidID = apperr.E(apperr.KindInvalidInput, "gateway: id is required")
)
