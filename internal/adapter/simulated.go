package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/verdantops/canopy-core/internal/controller"
)

// BrandSimulated is the brand name the simulated adapter registers under.
const BrandSimulated = "simulated"

// simulatedCredentials is the credential document the simulated brand
// expects after decryption. Matches the shape real vendor clouds use.
type simulatedCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Simulated is an in-process adapter for development sites and soak
// tests. It produces deterministic, slowly drifting sensor values and
// remembers the levels applied to its device ports.
type Simulated struct {
	brand        string
	controllerID string
	caps         controller.CapabilitySet

	connected bool
	levels    map[int]int // port -> applied native step

	// now is replaceable in tests for deterministic readings.
	now func() time.Time
}

// NewSimulated builds a simulated adapter for a controller.
// Registered via Registry.Register(BrandSimulated, NewSimulated).
func NewSimulated(ctl *controller.Controller) Adapter {
	return &Simulated{
		brand:        ctl.Brand,
		controllerID: ctl.ControllerID,
		caps:         ctl.DeepCopy().Capabilities,
		levels:       make(map[int]int),
		now:          time.Now,
	}
}

// Connect validates the decrypted credential document.
func (s *Simulated) Connect(_ context.Context, credentials []byte) error {
	if s.connected {
		return nil
	}

	var creds simulatedCredentials
	if err := json.Unmarshal(credentials, &creds); err != nil {
		return fmt.Errorf("%w: parsing credentials: %w", ErrConnectFailed, err)
	}
	if creds.Email == "" || creds.Password == "" {
		return fmt.Errorf("%w: missing email or password", ErrConnectFailed)
	}

	s.connected = true
	return nil
}

// ReadSensors returns one reading per declared sensor port.
//
// Values follow a 24-hour sinusoid offset by a per-controller phase, so
// two simulated controllers never report identical traces but a given
// controller is reproducible at a given instant.
func (s *Simulated) ReadSensors(_ context.Context) ([]SensorReading, error) {
	if !s.connected {
		return nil, ErrNotConnected
	}

	now := s.now()
	readings := make([]SensorReading, 0, len(s.caps.Sensors))
	for _, sensor := range s.caps.Sensors {
		readings = append(readings, SensorReading{
			Port:      sensor.Port,
			Type:      sensor.Type,
			Value:     s.simulateValue(sensor, now),
			Unit:      sensor.Unit,
			Timestamp: now,
		})
	}
	return readings, nil
}

// ControlDevice quantizes and records a level for a device port.
func (s *Simulated) ControlDevice(_ context.Context, port, level int) error {
	if !s.connected {
		return ErrNotConnected
	}
	if level < 0 || level > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}

	dev, ok := s.caps.Device(port)
	if !ok {
		return fmt.Errorf("%w: device port %d", ErrUnknownPort, port)
	}

	s.levels[port] = QuantizeLevel(level, dev.Levels)
	return nil
}

// Disconnect tears the simulated session down.
func (s *Simulated) Disconnect(context.Context) error {
	s.connected = false
	return nil
}

// Connected reports whether Connect has succeeded.
func (s *Simulated) Connected() bool {
	return s.connected
}

// AppliedLevel returns the last applied level for a device port on the
// 0-100 scale, and whether any level has been applied.
func (s *Simulated) AppliedLevel(port int) (int, bool) {
	native, ok := s.levels[port]
	if !ok {
		return 0, false
	}
	dev, _ := s.caps.Device(port)
	return NativeToLevel(native, dev.Levels), true
}

func (s *Simulated) simulateValue(sensor controller.SensorCapability, now time.Time) float64 {
	// Phase offset from the controller identity keeps traces distinct.
	h := fnv.New32a()
	h.Write([]byte(s.controllerID))
	fmt.Fprintf(h, ":%d", sensor.Port)
	phase := float64(h.Sum32()%360) * math.Pi / 180

	minutes := float64(now.Hour()*60 + now.Minute())
	cycle := math.Sin(2*math.Pi*minutes/1440 + phase)

	var base, swing float64
	switch sensor.Type {
	case "temperature":
		base, swing = 76, 4
	case "humidity":
		base, swing = 55, 8
	case "vpd":
		base, swing = 1.1, 0.3
	case "co2":
		base, swing = 900, 150
	default:
		base, swing = 50, 10
	}

	return math.Round((base+swing*cycle)*10) / 10
}
