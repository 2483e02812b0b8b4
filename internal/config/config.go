// Package config loads the bridge configuration from a YAML file and
// environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	TransportMemory = "memory"
	TransportLibp2p = "libp2p"
)

type Config struct {
	App    AppConfig    `yaml:"app"`
	Engine EngineConfig `yaml:"engine"`
	Status StatusConfig `yaml:"status"`
	Log    LogConfig    `yaml:"log"`
}

type AppConfig struct {
	Name          string   `yaml:"name"`
	Mission       string   `yaml:"mission"`
	Subscriptions []string `yaml:"subscriptions"`
	// RefreshInterval is the register interval in seconds; 0 means as fast as available.
	RefreshInterval float64 `yaml:"refresh_interval"`
}

type EngineConfig struct {
	AppTick     float64      `yaml:"app_tick"`
	ReportEvery int          `yaml:"report_every"`
	Transport   string       `yaml:"transport"`
	TopicPrefix string       `yaml:"topic_prefix"`
	Libp2p      Libp2pConfig `yaml:"libp2p"`
}

type Libp2pConfig struct {
	ListenAddrs     []string `yaml:"listen_addrs"`
	Bootstrap       []string `yaml:"bootstrap"`
	Rendezvous      string   `yaml:"rendezvous"`
	MDNS            bool     `yaml:"mdns"`
	IdentityKeyFile string   `yaml:"identity_key_file"`
	RequirePeers    bool     `yaml:"require_peers"`
}

type StatusConfig struct {
	// ListenAddr of the operator HTTP console; empty disables it.
	ListenAddr string `yaml:"listen_addr"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		App: AppConfig{
			Name: "Simple",
		},
		Engine: EngineConfig{
			AppTick:     4,
			ReportEvery: 4,
			Transport:   TransportMemory,
			TopicPrefix: "moos.",
			Libp2p: Libp2pConfig{
				Rendezvous: "moos-bridge",
			},
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadFile decodes path over the defaults. Unknown keys are rejected.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return cfg, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read file: %w", err)
	}
	if err := decodeStrict(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decodeStrict(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("config file contains multiple documents or trailing content")
	}
	return nil
}

// Validate checks the values a session cannot start without.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.App.Name) == "" {
		errs = append(errs, errors.New("app.name is required"))
	}
	for i, s := range c.App.Subscriptions {
		if strings.TrimSpace(s) == "" {
			errs = append(errs, fmt.Errorf("app.subscriptions[%d] is empty", i))
		}
	}
	if c.App.RefreshInterval < 0 {
		errs = append(errs, fmt.Errorf("app.refresh_interval must be >= 0, got %v", c.App.RefreshInterval))
	}
	if c.Engine.AppTick <= 0 {
		errs = append(errs, fmt.Errorf("engine.app_tick must be > 0, got %v", c.Engine.AppTick))
	}
	switch c.Engine.Transport {
	case TransportMemory, TransportLibp2p:
	default:
		errs = append(errs, fmt.Errorf("engine.transport must be %q or %q, got %q", TransportMemory, TransportLibp2p, c.Engine.Transport))
	}
	return errors.Join(errs...)
}
