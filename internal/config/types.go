package config

import "time"

// Config represents the complete licenced configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	RPC     RPCConfig     `yaml:"rpc"`
	License LicenseConfig `yaml:"license"`
	API     APIConfig     `yaml:"api,omitempty"`
	Audit   AuditConfig   `yaml:"audit"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`
}

// RPCConfig defines the operation processor settings.
type RPCConfig struct {
	RequestTopic     string        `yaml:"request_topic"`
	ResponseTopic    string        `yaml:"response_topic"`
	Workers          int           `yaml:"workers"`
	JoinTimeout      time.Duration `yaml:"join_timeout"`
	SweepEvery       int           `yaml:"sweep_every"`
	MaxPayloadBytes  int           `yaml:"max_payload_bytes"`
	MaxEnvelopeBytes int           `yaml:"max_envelope_bytes"`
	RateLimit        *RateLimit    `yaml:"rate_limit,omitempty"`
}

// RateLimit optionally throttles inbound requests before submission.
type RateLimit struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// LicenseConfig defines where license material lives on disk.
// The snapshot handed to workers is immutable after construction.
type LicenseConfig struct {
	KeysDir         string `yaml:"keys_directory"`
	LicensesDir     string `yaml:"licenses_directory"`
	DefinitionsFile string `yaml:"license_definitions_file"`
	PublicKeyFile   string `yaml:"public_key_file"`
	PrivateKeyFile  string `yaml:"private_key_file"`
}

// APIConfig defines HTTP status server settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// AuditConfig defines the request audit log storage.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "licenced",
			LogLevel: "INFO",
		},
		RPC: RPCConfig{
			RequestTopic:     "direct_messaging/licenced/requests",
			ResponseTopic:    "direct_messaging/licenced/responses",
			Workers:          100,
			JoinTimeout:      5 * time.Minute,
			SweepEvery:       10,
			MaxPayloadBytes:  1024 * 1024,
			MaxEnvelopeBytes: 512 * 1024,
		},
		License: LicenseConfig{
			KeysDir:         "./keys",
			LicensesDir:     "./licenses",
			DefinitionsFile: "./config/license_definitions.json",
			PublicKeyFile:   "./keys/public_key.pem",
			PrivateKeyFile:  "./keys/private_key.pem",
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8099",
		},
		Audit: AuditConfig{
			Path: "./data/licenced.db",
		},
	}
}
