package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testPasswordHash = "$argon2id$v=19$m=65536,t=3,p=4$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
api:
  host: "0.0.0.0"
  port: 8080
admin:
  username: "operator"
  password_hash: "` + testPasswordHash + `"
relay:
  api_url: "http://mediamtx:9997"
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.Admin.Username != "operator" {
		t.Errorf("Admin.Username = %q, want %q", cfg.Admin.Username, "operator")
	}
	if cfg.Relay.APIURL != "http://mediamtx:9997" {
		t.Errorf("Relay.APIURL = %q, want %q", cfg.Relay.APIURL, "http://mediamtx:9997")
	}
	// Defaults survive a partial relay section.
	if cfg.Relay.PublishUser != "gateway" {
		t.Errorf("Relay.PublishUser = %q, want %q", cfg.Relay.PublishUser, "gateway")
	}
	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
database:
  path: "/tmp/test.db"
api:
  port: 8080
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error for missing secrets, got nil")
	}
	// Every problem is reported at once.
	for _, want := range []string{"admin.password_hash", "security.jwt.secret"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	validJWTSecret := "test-secret-key-at-least-32-chars!"

	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Admin.PasswordHash = testPasswordHash
		cfg.Security.JWT.Secret = validJWTSecret
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "invalid port low", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: true},
		{name: "invalid port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: true},
		{name: "missing admin username", mutate: func(c *Config) { c.Admin.Username = "" }, wantErr: true},
		{name: "missing admin password hash", mutate: func(c *Config) { c.Admin.PasswordHash = "" }, wantErr: true},
		{name: "missing relay url", mutate: func(c *Config) { c.Relay.APIURL = "" }, wantErr: true},
		{name: "missing publish user", mutate: func(c *Config) { c.Relay.PublishUser = "" }, wantErr: true},
		{name: "zero status timeout", mutate: func(c *Config) { c.Relay.StatusTimeout = 0 }, wantErr: true},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "missing JWT secret", mutate: func(c *Config) { c.Security.JWT.Secret = "" }, wantErr: true},
		{name: "JWT secret too short", mutate: func(c *Config) { c.Security.JWT.Secret = "short" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
		Relay: RelayConfig{StatusTimeout: 3},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
	if got := cfg.GetRelayStatusTimeout().Seconds(); got != 3 {
		t.Errorf("GetRelayStatusTimeout() = %v, want 3", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("MESHGATE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("MESHGATE_API_HOST", "192.168.1.1")
	t.Setenv("MESHGATE_ADMIN_USERNAME", "root")
	t.Setenv("MESHGATE_ADMIN_PASSWORD_HASH", testPasswordHash)
	t.Setenv("MESHGATE_RELAY_API_URL", "http://relay:9997")
	t.Setenv("MESHGATE_RELAY_PUBLISH_USER", "edge")
	t.Setenv("MESHGATE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("MESHGATE_MQTT_USERNAME", "testuser")
	t.Setenv("MESHGATE_MQTT_PASSWORD", "testpass")
	t.Setenv("MESHGATE_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("MESHGATE_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	checks := []struct {
		field string
		got   string
		want  string
	}{
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"Admin.Username", cfg.Admin.Username, "root"},
		{"Admin.PasswordHash", cfg.Admin.PasswordHash, testPasswordHash},
		{"Relay.APIURL", cfg.Relay.APIURL, "http://relay:9997"},
		{"Relay.PublishUser", cfg.Relay.PublishUser, "edge"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Security.JWT.Secret", cfg.Security.JWT.Secret, "jwt-secret"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}
	if cfg.Relay.PublishUser != "gateway" {
		t.Errorf("defaultConfig Relay.PublishUser = %q, want %q", cfg.Relay.PublishUser, "gateway")
	}
	if cfg.Relay.APIURL != "http://localhost:9997" {
		t.Errorf("defaultConfig Relay.APIURL = %q, want %q", cfg.Relay.APIURL, "http://localhost:9997")
	}
	if cfg.MQTT.Enabled {
		t.Error("defaultConfig should leave MQTT disabled")
	}
}
