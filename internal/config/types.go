package config

// Config represents the complete forkjoin configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	State   StateConfig   `yaml:"state"`
	Lock    LockConfig    `yaml:"lock"`
	API     APIConfig     `yaml:"api,omitempty"`
	Tasks   []TaskConf    `yaml:"tasks"`
}

// ServiceConfig defines process-wide settings.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`
}

// StateConfig defines where the journal lives.
type StateConfig struct {
	Path string `yaml:"path"`
}

// LockConfig defines the dispatcher lock file.
type LockConfig struct {
	Path string `yaml:"path"`
}

// APIConfig defines the read-only history API.
type APIConfig struct {
	Listen string     `yaml:"listen"`
	Tokens []APIToken `yaml:"tokens,omitempty"`
}

// APIToken is a bearer token. No scopes means full read access.
type APIToken struct {
	Token  string   `yaml:"token"`
	Scopes []string `yaml:"scopes,omitempty"`
}

// TaskConf describes one task launched by `forkjoin run`.
type TaskConf struct {
	Name     string `yaml:"name"`
	Callable string `yaml:"callable"`
	Args     []any  `yaml:"args,omitempty"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "forkjoin",
			LogLevel: "info",
		},
		State: StateConfig{
			Path: "./data/journal.db",
		},
		API: APIConfig{
			Listen: "127.0.0.1:8090",
		},
	}
}
