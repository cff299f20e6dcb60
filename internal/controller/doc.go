// Package controller defines provisioned cloud controllers and their
// SQLite persistence.
//
// A Controller row pairs a vendor identity (brand + controller_id) with
// an encrypted credential blob and a declared CapabilitySet of sensor
// and device ports. The poll scheduler reads ListActive and writes back
// health through UpdateHealth; everything else treats controllers as
// read-mostly reference data.
package controller
