package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/derekprior/petanque/internal/draw"
)

type Server struct {
	Address        string   `yaml:"address"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Tournament struct {
	Strategy     string `yaml:"strategy"`
	WinningScore int    `yaml:"winning_score"`
	MaxPlayers   int    `yaml:"max_players"`
	MaxRounds    int    `yaml:"max_rounds"`
}

type Workbook struct {
	Font string `yaml:"font"`
}

type Config struct {
	Server     Server     `yaml:"server"`
	Tournament Tournament `yaml:"tournament"`
	Workbook   Workbook   `yaml:"workbook"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	return &Config{
		Server: Server{
			Address:        ":5000",
			AllowedOrigins: []string{"https://sougil.github.io"},
		},
		Tournament: Tournament{
			Strategy:     draw.DefaultStrategy,
			WinningScore: 13,
			MaxPlayers:   200,
			MaxRounds:    50,
		},
		Workbook: Workbook{
			Font: "Arial",
		},
	}
}

// LoadFromBytes parses YAML bytes over the defaults and validates the result.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads and parses a YAML config file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromBytes(data)
}

// ApplyEnv overrides file settings from environment variables. PORT follows
// the convention of most hosting platforms.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if port := getenv("PORT"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n <= 0 || n > 65535 {
			return fmt.Errorf("invalid PORT %q", port)
		}
		c.Server.Address = fmt.Sprintf(":%d", n)
	}

	if origins := getenv("ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, o)
			}
		}
	}

	if score := getenv("WINNING_SCORE"); score != "" {
		n, err := strconv.Atoi(score)
		if err != nil {
			return fmt.Errorf("invalid WINNING_SCORE %q: %w", score, err)
		}
		c.Tournament.WinningScore = n
	}

	return c.validate()
}

func (c *Config) validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server address is required")
	}

	if _, err := draw.Get(c.Tournament.Strategy); err != nil {
		return err
	}

	if c.Tournament.WinningScore <= 0 {
		return fmt.Errorf("winning score must be positive, got %d", c.Tournament.WinningScore)
	}

	if c.Tournament.MaxPlayers < 4 {
		return fmt.Errorf("max players must be at least 4, got %d", c.Tournament.MaxPlayers)
	}

	if c.Tournament.MaxRounds < 1 {
		return fmt.Errorf("max rounds must be at least 1, got %d", c.Tournament.MaxRounds)
	}

	for _, o := range c.Server.AllowedOrigins {
		if o == "" {
			return fmt.Errorf("allowed origins must not contain empty entries")
		}
	}

	return nil
}
