package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/modfin/cardx"
	"github.com/modfin/cardx/sink"
)

// Config is the cardx command configuration file.
type Config struct {
	LogLevel string       `yaml:"log_level"`
	Parser   cardx.Config `yaml:"parser"`
	Redis    RedisConfig  `yaml:"redis"`
	MySQL    MySQLConfig  `yaml:"mysql"`
	// Properties limits dump and store to these property names, all when empty
	Properties []string `yaml:"properties"`
}

type RedisConfig struct {
	Addr   string        `yaml:"addr"`
	Prefix string        `yaml:"prefix"`
	TTL    time.Duration `yaml:"ttl"`
}

type MySQLConfig struct {
	sink.MySQLConfig `yaml:",inline"`
	CreateTable      bool `yaml:"create_table"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: "warn",
		Parser: cardx.Config{
			MaxLineLength: 32 << 10,
			MaxSize:       10 << 20,
			ChunkSize:     4 << 10,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "cardx",
		},
		MySQL: MySQLConfig{
			MySQLConfig: sink.MySQLConfig{
				Addr:  "localhost:3306",
				Table: "cardx_properties",
			},
		},
	}
}

// Load reads the configuration file at path on top of the defaults. An empty
// path gives the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Parser.Validate(); err != nil {
		return nil, fmt.Errorf("invalid parser config in %s: %w", path, err)
	}
	return cfg, nil
}
