// Package config loads and validates Canopy Core configuration.
//
// Configuration is layered: hardcoded defaults, then a YAML file, then
// CANOPY_* environment variable overrides. The result is validated once
// at startup; a missing credential encryption key is treated as fatal
// because nothing downstream can decrypt controller accounts without it.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	db, err := database.Open(database.Config{Path: cfg.Database.Path})
//
// Duration-valued settings are stored as plain integers in YAML (seconds,
// minutes or milliseconds, named accordingly) and exposed as time.Duration
// through helper methods.
package config
