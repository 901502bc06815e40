package appconfig

import (
	"os"
	"path/filepath"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int           `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string        `mapstructure:"state_dir" yaml:"state_dir"`
	Backend       BackendConfig `mapstructure:"backend" yaml:"backend"`
	Console       ConsoleConfig `mapstructure:"console" yaml:"console"`
	HTTP          HTTPConfig    `mapstructure:"http" yaml:"http"`
	SSH           SSHConfig     `mapstructure:"ssh" yaml:"ssh"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// BackendConfig points at the remote execution backend.
type BackendConfig struct {
	BaseURL        string  `mapstructure:"base_url" yaml:"base_url"`
	Language       string  `mapstructure:"language" yaml:"language"`
	VCPU           float64 `mapstructure:"vcpu" yaml:"vcpu"`
	Memory         string  `mapstructure:"memory" yaml:"memory"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// ConsoleConfig controls console sessions.
type ConsoleConfig struct {
	WhoAmI             string `mapstructure:"whoami" yaml:"whoami"`
	TranscriptMaxLines int    `mapstructure:"transcript_max_lines" yaml:"transcript_max_lines"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr                   string `mapstructure:"addr" yaml:"addr"`
	BasePath               string `mapstructure:"base_path" yaml:"base_path"`
	Cookie                 string `mapstructure:"cookie" yaml:"cookie"`
	InitialTranscriptLines int    `mapstructure:"initial_transcript_lines" yaml:"initial_transcript_lines"`
	ProxyPrefix            string `mapstructure:"proxy_prefix" yaml:"proxy_prefix"`
}

// SSHConfig configures the SSH server.
type SSHConfig struct {
	Addr        string `mapstructure:"addr" yaml:"addr"`
	HostKeyPath string `mapstructure:"host_key_path" yaml:"host_key_path"`
	Theme       string `mapstructure:"theme" yaml:"theme"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(home, ".forgecode", "state"),
		Backend: BackendConfig{
			BaseURL:        "http://localhost:5000",
			Language:       "python",
			VCPU:           0.25,
			Memory:         "512m",
			TimeoutSeconds: 0,
		},
		Console: ConsoleConfig{
			WhoAmI:             "forge",
			TranscriptMaxLines: 0,
		},
		HTTP: HTTPConfig{
			Addr:                   ":3000",
			BasePath:               "",
			Cookie:                 "forgecode_workspace",
			InitialTranscriptLines: 200,
			ProxyPrefix:            "/api/proxy",
		},
		SSH: SSHConfig{
			Addr:        ":3022",
			HostKeyPath: filepath.Join(home, ".forgecode", "ssh_host_key"),
			Theme:       "dark",
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".forgecode", "config.yaml"), nil
}
