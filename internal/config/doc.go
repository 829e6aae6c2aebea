// ABOUTME: Package documentation for the config package
// ABOUTME: Describes the YAML configuration format and expansion rules

// Package config loads handoff-gateway configuration from YAML.
//
// Files may reference environment variables with ${VAR_NAME}; unset variables
// expand to the empty string. Duration fields accept Go duration strings
// ("30s", "24h"). Defaults cover every handoff tuning knob, so a minimal
// config only needs server.http_addr and database.path.
package config
