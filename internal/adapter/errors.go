package adapter

import "errors"

// Domain-specific errors for adapter operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when ReadSensors or ControlDevice is
	// called before a successful Connect.
	ErrNotConnected = errors.New("adapter: not connected")

	// ErrConnectFailed is returned when authentication against the
	// vendor cloud fails.
	ErrConnectFailed = errors.New("adapter: connect failed")

	// ErrUnknownBrand is returned when no adapter factory is registered
	// for a controller's brand.
	ErrUnknownBrand = errors.New("adapter: unknown brand")

	// ErrUnknownPort is returned when a command targets a port the
	// controller's capabilities do not list.
	ErrUnknownPort = errors.New("adapter: unknown port")

	// ErrInvalidLevel is returned for levels outside the 0-100 scale.
	ErrInvalidLevel = errors.New("adapter: level out of range")
)
