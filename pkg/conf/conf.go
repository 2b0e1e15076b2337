package conf

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the startup configuration. It is assembled once in main
// (defaults, then environment, then config file, then flags) and treated as
// read-only afterwards.
type Config struct {
	// Domain is the original domain to strip from served content.
	Domain string `yaml:"domain"`
	// Directory is the content root of the mirrored site.
	Directory string `yaml:"directory"`

	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// MetricsAddress enables the prometheus listener when non-empty.
	MetricsAddress string `yaml:"metricsAddress,omitempty"`
}

// Default returns the built-in defaults with environment overrides applied.
func Default() Config {
	cfg := Config{
		Domain:         os.Getenv("DOMAIN"),
		Directory:      getenv("DIRECTORY", "."),
		Host:           getenv("HOST", "0.0.0.0"),
		Port:           8000,
		MetricsAddress: os.Getenv("METRICS_ADDRESS"),
	}
	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.Port = port
		}
	}
	return cfg
}

// Load reads a yaml config file on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("syntax error in config file '%s': %w", path, err)
	}
	return cfg, nil
}

// ListenAddress returns the host:port the site server binds to.
func (c Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getenv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
