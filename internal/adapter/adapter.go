package adapter

import (
	"context"
	"time"
)

// SensorReading is one value reported by a controller sensor port.
type SensorReading struct {
	Port      int       `json:"port"`
	Type      string    `json:"type"` // temperature, humidity, vpd, co2, ...
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Timestamp time.Time `json:"timestamp"`
}

// Adapter is a live session against one controller's cloud API.
//
// Implementations are stateful: Connect authenticates with decrypted
// credentials and must succeed before ReadSensors or ControlDevice are
// called. Adapters are NOT safe for concurrent use; the poll scheduler
// serializes all calls to a given adapter.
type Adapter interface {
	// Connect authenticates against the vendor cloud using decrypted
	// credentials. Calling Connect on an already connected adapter is a
	// no-op.
	Connect(ctx context.Context, credentials []byte) error

	// ReadSensors returns current values for every sensor port the
	// controller exposes. Returns ErrNotConnected before Connect.
	ReadSensors(ctx context.Context) ([]SensorReading, error)

	// ControlDevice sets a device port to a level on the 0-100 scale.
	// Implementations quantize to the port's native scale. Returns
	// ErrNotConnected before Connect and ErrUnknownPort for ports the
	// controller does not expose.
	ControlDevice(ctx context.Context, port, level int) error

	// Disconnect tears the session down. Safe to call repeatedly.
	Disconnect(ctx context.Context) error

	// Connected reports whether the session is currently established.
	Connected() bool
}

// Logger defines the logging interface used by this package.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
