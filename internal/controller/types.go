package controller

import "time"

// Status tracks the last known health of a controller's cloud link.
type Status string

const (
	// StatusInitializing is the state of a freshly provisioned controller
	// that has never completed a poll.
	StatusInitializing Status = "initializing"

	// StatusOnline means the last connect attempt succeeded.
	StatusOnline Status = "online"

	// StatusOffline means the controller has been deliberately taken out
	// of rotation (distinct from IsActive, which removes it entirely).
	StatusOffline Status = "offline"

	// StatusError means the last connect or decrypt attempt failed.
	StatusError Status = "error"
)

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	switch s {
	case StatusInitializing, StatusOnline, StatusOffline, StatusError:
		return true
	}
	return false
}

// SensorCapability describes one sensor port a controller exposes.
type SensorCapability struct {
	Port int    `json:"port"`
	Type string `json:"type"` // temperature, humidity, vpd, co2, ...
	Unit string `json:"unit"` // F, %, kPa, ppm, ...
}

// DeviceCapability describes one controllable output port.
//
// Levels is the number of discrete steps above off that the hardware
// accepts. A 0-10 fan controller has Levels 10; a percentage dimmer has
// Levels 100. Commands are issued on the 0-100 scale and quantized to
// the port's native scale by the adapter.
type DeviceCapability struct {
	Port   int    `json:"port"`
	Kind   string `json:"kind"` // fan, dimmer, outlet, ...
	Levels int    `json:"levels"`
}

// CapabilitySet is the full port map reported for a controller.
// Stored as a JSON document in the controllers table.
type CapabilitySet struct {
	Sensors []SensorCapability `json:"sensors,omitempty"`
	Devices []DeviceCapability `json:"devices,omitempty"`
}

// Sensor returns the sensor capability on the given port, if any.
func (c CapabilitySet) Sensor(port int) (SensorCapability, bool) {
	for _, s := range c.Sensors {
		if s.Port == port {
			return s, true
		}
	}
	return SensorCapability{}, false
}

// Device returns the device capability on the given port, if any.
func (c CapabilitySet) Device(port int) (DeviceCapability, bool) {
	for _, d := range c.Devices {
		if d.Port == port {
			return d, true
		}
	}
	return DeviceCapability{}, false
}

// Controller is a provisioned cloud controller.
// This matches the controllers table in the initial schema migration.
type Controller struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// Vendor identity. Brand selects the adapter implementation;
	// ControllerID is the vendor-assigned device identifier.
	Brand        string `json:"brand"`
	ControllerID string `json:"controller_id"`

	// Credentials is the encrypted cloud-account credential blob.
	// Never exposed over the API or logged.
	Credentials string `json:"-"`

	Capabilities CapabilitySet `json:"capabilities"`

	// Health
	Status    Status     `json:"status"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
	LastError *string    `json:"last_error,omitempty"`

	IsActive bool `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates an independent copy of the Controller.
// Slice and pointer fields are cloned so cached copies stay isolated.
func (c *Controller) DeepCopy() *Controller {
	if c == nil {
		return nil
	}

	cpy := *c

	if c.Capabilities.Sensors != nil {
		cpy.Capabilities.Sensors = make([]SensorCapability, len(c.Capabilities.Sensors))
		copy(cpy.Capabilities.Sensors, c.Capabilities.Sensors)
	}
	if c.Capabilities.Devices != nil {
		cpy.Capabilities.Devices = make([]DeviceCapability, len(c.Capabilities.Devices))
		copy(cpy.Capabilities.Devices, c.Capabilities.Devices)
	}

	if c.LastSeen != nil {
		seen := *c.LastSeen
		cpy.LastSeen = &seen
	}
	if c.LastError != nil {
		msg := *c.LastError
		cpy.LastError = &msg
	}

	return &cpy
}
