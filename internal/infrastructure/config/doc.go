// Package config handles loading and validating meshgate core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (JWT secret, admin password hash, broker credentials)
//     should be set via environment variables
//   - The admin password is configured as an argon2id PHC hash, never plaintext
//   - The config file should have restricted permissions (0600)
//
// The returned Config is built once at startup and treated as immutable;
// changing the admin identity or relay publish user means redeploying config.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Relay.APIURL)
package config
