package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSensorReading records a single sensor reading collected during a poll.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - controllerID: Canopy controller identity (e.g., "ctl-a1b2c3d4")
//   - port: Sensor port number on the controller
//   - sensorType: The sensor type (e.g., "temperature", "humidity", "vpd")
//   - value: The numeric reading
//   - unit: Unit of measure (e.g., "F", "%", "kPa")
//   - timestamp: When the reading was taken
//
// Example:
//
//	client.WriteSensorReading("ctl-a1b2c3d4", 1, "temperature", 78.4, "F", reading.Timestamp)
func (c *Client) WriteSensorReading(controllerID string, port int, sensorType string, value float64, unit string, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"sensor_readings",
		map[string]string{
			"controller_id": controllerID,
			"sensor_type":   sensorType,
			"unit":          unit,
		},
		map[string]interface{}{
			"value": value,
			"port":  port,
		},
		timestamp,
	)

	c.writeAPI.WritePoint(point)
}

// WriteDimmerIntensity records the intensity issued by the sunlight job.
//
// Used to chart sunrise/sunset ramps against the configured curves.
//
// Parameters:
//   - controllerID: Canopy controller identity
//   - port: Dimmer port the level was applied to
//   - event: "sunrise" or "sunset"
//   - intensity: Applied level (0-100)
func (c *Client) WriteDimmerIntensity(controllerID string, port int, event string, intensity int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"dimmer_intensity",
		map[string]string{
			"controller_id": controllerID,
			"event":         event,
		},
		map[string]interface{}{
			"intensity": intensity,
			"port":      port,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
