package appconfig

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/forgecode/schema"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("backend.base_url", cfg.Backend.BaseURL)
	v.SetDefault("backend.language", cfg.Backend.Language)
	v.SetDefault("backend.vcpu", cfg.Backend.VCPU)
	v.SetDefault("backend.memory", cfg.Backend.Memory)
	v.SetDefault("backend.timeout_seconds", cfg.Backend.TimeoutSeconds)
	v.SetDefault("console.whoami", cfg.Console.WhoAmI)
	v.SetDefault("console.transcript_max_lines", cfg.Console.TranscriptMaxLines)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.base_path", cfg.HTTP.BasePath)
	v.SetDefault("http.cookie", cfg.HTTP.Cookie)
	v.SetDefault("http.initial_transcript_lines", cfg.HTTP.InitialTranscriptLines)
	v.SetDefault("http.proxy_prefix", cfg.HTTP.ProxyPrefix)
	v.SetDefault("ssh.addr", cfg.SSH.Addr)
	v.SetDefault("ssh.host_key_path", cfg.SSH.HostKeyPath)
	v.SetDefault("ssh.theme", cfg.SSH.Theme)
	v.SetEnvPrefix("FORGECODE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	switch _, err := os.Stat(path); {
	case err == nil:
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
		if got := v.GetInt("config_version"); got != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", got, CurrentConfigVersion)
		}
	case !errors.Is(err, os.ErrNotExist):
		return Config{}, err
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if err := validateBackendConfig(cfg.Backend); err != nil {
		return err
	}
	if err := validateHTTPConfig(cfg.HTTP); err != nil {
		return err
	}
	if _, ok := schema.NormalizeThemeName(cfg.SSH.Theme); !ok {
		return fmt.Errorf("unsupported ssh.theme %q", cfg.SSH.Theme)
	}
	if cfg.Console.TranscriptMaxLines < 0 {
		return fmt.Errorf("console.transcript_max_lines must not be negative")
	}
	return nil
}

func validateBackendConfig(cfg BackendConfig) error {
	parsed, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("backend.base_url must include scheme and host (e.g. http://localhost:5000)")
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("backend.base_url must use http or https")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Language)) {
	case "python", "lua":
	default:
		return fmt.Errorf("unsupported backend.language %q", cfg.Language)
	}
	if cfg.VCPU <= 0 {
		return fmt.Errorf("backend.vcpu must be positive")
	}
	if strings.TrimSpace(cfg.Memory) == "" {
		return fmt.Errorf("backend.memory is required")
	}
	if cfg.TimeoutSeconds < 0 {
		return fmt.Errorf("backend.timeout_seconds must not be negative")
	}
	return nil
}

func validateHTTPConfig(cfg HTTPConfig) error {
	for key, value := range map[string]string{"http.base_path": cfg.BasePath, "http.proxy_prefix": cfg.ProxyPrefix} {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if strings.Contains(value, "://") {
			return fmt.Errorf("%s must be a path prefix, not a URL", key)
		}
		if strings.ContainsAny(value, "?#") {
			return fmt.Errorf("%s must not include query or fragment", key)
		}
	}
	if strings.TrimSpace(cfg.Cookie) == "" {
		return fmt.Errorf("http.cookie is required")
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.Backend.BaseURL = expandEnv(cfg.Backend.BaseURL)
	cfg.SSH.HostKeyPath = expandEnv(cfg.SSH.HostKeyPath)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
