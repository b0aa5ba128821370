package bench

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 压测参数，可由 YAML 文件提供，命令行参数覆盖
type Config struct {
	Target      string        `yaml:"target"`
	Voters      int           `yaml:"voters"`
	Unvoters    int           `yaml:"unvoters"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
	Password    string        `yaml:"password"`
}

func DefaultConfig() Config {
	return Config{
		Target:      "http://localhost:3000",
		Voters:      50,
		Unvoters:    10,
		Concurrency: 10,
		Timeout:     10 * time.Second,
		Password:    "bench-password",
	}
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.Target == "":
		return fmt.Errorf("target is required")
	case c.Voters < 1:
		return fmt.Errorf("voters must be positive, got %d", c.Voters)
	case c.Unvoters < 0 || c.Unvoters > c.Voters:
		return fmt.Errorf("unvoters must be between 0 and voters (%d), got %d", c.Voters, c.Unvoters)
	case c.Concurrency < 1:
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	case c.Timeout <= 0:
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}
