package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, expands and validates the configuration file at path.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", path, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	return Parse(data)
}

// Parse decodes configuration from YAML bytes, applying defaults and validation.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg = applyConfigDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Discover finds a config file by checking standard locations.
// Priority order: $FORKJOIN_CONFIG, ~/.config/forkjoin/config.yaml, ./forkjoin.yaml
func Discover() (string, error) {
	if p := os.Getenv("FORKJOIN_CONFIG"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(homeDir, ".config", "forkjoin", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	if _, err := os.Stat("./forkjoin.yaml"); err == nil {
		return "./forkjoin.yaml", nil
	}

	return "", fmt.Errorf("no config found (checked: $FORKJOIN_CONFIG, ~/.config/forkjoin/config.yaml, ./forkjoin.yaml)")
}

func applyConfigDefaults(cfg *Config) *Config {
	defaults := Defaults()

	if cfg.Service.Name == "" {
		cfg.Service.Name = defaults.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = defaults.Service.LogLevel
	}
	if cfg.State.Path == "" {
		cfg.State.Path = defaults.State.Path
	}
	if cfg.Lock.Path == "" {
		cfg.Lock.Path = filepath.Join(filepath.Dir(cfg.State.Path), "forkjoin.lock")
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = defaults.API.Listen
	}

	for i := range cfg.Tasks {
		if cfg.Tasks[i].Name == "" {
			cfg.Tasks[i].Name = fmt.Sprintf("%s-%d", cfg.Tasks[i].Callable, i+1)
		}
	}
	return cfg
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is and rejected by validate.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

func validate(cfg *Config) error {
	switch strings.ToLower(cfg.Service.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("service.log_level: unknown level %q", cfg.Service.LogLevel)
	}

	for _, p := range []struct{ key, val string }{
		{"state.path", cfg.State.Path},
		{"lock.path", cfg.Lock.Path},
		{"api.listen", cfg.API.Listen},
	} {
		if envVarPattern.MatchString(p.val) {
			return fmt.Errorf("%s: unresolved environment variable in %q", p.key, p.val)
		}
	}

	for i, tok := range cfg.API.Tokens {
		if strings.TrimSpace(tok.Token) == "" {
			return fmt.Errorf("api.tokens[%d].token is empty", i)
		}
		if envVarPattern.MatchString(tok.Token) {
			return fmt.Errorf("api.tokens[%d].token: unresolved environment variable", i)
		}
	}

	seen := make(map[string]bool, len(cfg.Tasks))
	for i, t := range cfg.Tasks {
		if t.Callable == "" {
			return fmt.Errorf("tasks[%d]: callable is required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("tasks[%d]: duplicate task name %q", i, t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}
