package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a file. Environment variables in
// the form ${VAR} are interpolated before parsing. If a .checksums manifest
// exists next to the config file, the file is hash-verified against it.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	if _, err := os.Stat(absPath); err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	interpolated := interpolateEnv(string(data))

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(interpolated), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := VerifyConfigHash(absPath); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// interpolateEnv replaces ${VAR} references with their environment values.
// Unset variables are left as-is so validation can surface them.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, ok := os.LookupEnv(varName); ok {
			return value
		}
		return match
	})
}

func validate(cfg *Config) error {
	if cfg.Service.Name == "" {
		return fmt.Errorf("service.name is empty")
	}
	if cfg.RPC.RequestTopic == "" {
		return fmt.Errorf("rpc.request_topic is empty")
	}
	if cfg.RPC.ResponseTopic == "" {
		return fmt.Errorf("rpc.response_topic is empty")
	}
	if cfg.RPC.RequestTopic == cfg.RPC.ResponseTopic {
		return fmt.Errorf("rpc.request_topic and rpc.response_topic must differ")
	}
	if cfg.RPC.Workers <= 0 {
		return fmt.Errorf("rpc.workers must be positive, got %d", cfg.RPC.Workers)
	}
	if cfg.RPC.JoinTimeout <= 0 {
		return fmt.Errorf("rpc.join_timeout must be positive, got %s", cfg.RPC.JoinTimeout)
	}
	if cfg.RPC.SweepEvery <= 0 {
		return fmt.Errorf("rpc.sweep_every must be positive, got %d", cfg.RPC.SweepEvery)
	}
	if cfg.RPC.MaxPayloadBytes <= 0 {
		return fmt.Errorf("rpc.max_payload_bytes must be positive, got %d", cfg.RPC.MaxPayloadBytes)
	}
	if cfg.RPC.MaxEnvelopeBytes <= 0 || cfg.RPC.MaxEnvelopeBytes > cfg.RPC.MaxPayloadBytes {
		return fmt.Errorf("rpc.max_envelope_bytes must be in (0, max_payload_bytes], got %d", cfg.RPC.MaxEnvelopeBytes)
	}
	if rl := cfg.RPC.RateLimit; rl != nil {
		if rl.PerSecond <= 0 {
			return fmt.Errorf("rpc.rate_limit.per_second must be positive, got %v", rl.PerSecond)
		}
		if rl.Burst <= 0 {
			return fmt.Errorf("rpc.rate_limit.burst must be positive, got %d", rl.Burst)
		}
	}
	if cfg.License.LicensesDir == "" {
		return fmt.Errorf("license.licenses_directory is empty")
	}
	if cfg.License.DefinitionsFile == "" {
		return fmt.Errorf("license.license_definitions_file is empty")
	}
	if cfg.API.Enabled && cfg.API.Listen == "" {
		return fmt.Errorf("api.listen is empty but api.enabled is true")
	}
	if cfg.Audit.Path == "" {
		return fmt.Errorf("audit.path is empty")
	}
	return nil
}

// MarshalExample renders a config as YAML, used by "licenced config example".
func MarshalExample(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return out, nil
}
