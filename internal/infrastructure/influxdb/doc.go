// Package influxdb records Canopy telemetry in InfluxDB v2.
//
// Two measurements are written: sensor_readings (every reading the poll
// scheduler collects) and dimmer_intensity (every level the sunlight job
// issues). Writes are batched and non-blocking; failures surface through
// the SetOnError callback rather than failing the originating run.
//
// The client is optional: when influxdb.enabled is false in config the
// engine runs without telemetry, and all write helpers are nil-safe.
package influxdb
