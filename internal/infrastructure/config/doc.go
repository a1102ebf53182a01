// Package config handles loading and validating Kommander bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (KOMMANDER_*)
//   - Validation of required fields
//   - Default value handling
//
// The device URL is intentionally excluded from validation. A malformed
// address is reported at runtime as the bad_config connection status so the
// bridge, its API and its MQTT presence stay up while an operator fixes it.
//
// Security Considerations:
//   - MQTT passwords and InfluxDB tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.URL)
package config
