// Package config handles the scout configuration file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/256dpi/scout/pkg/grant"
	"github.com/256dpi/scout/pkg/scan"
)

// DefaultPath is the default location of the configuration file.
const DefaultPath = "scout.yaml"

// The available backends.
const (
	BackendBLE  = "ble"
	BackendMDNS = "mdns"
)

// MQTT configures the MQTT bridge.
type MQTT struct {
	URL      string `yaml:"url"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
}

// Config represents the contents of the configuration file.
type Config struct {
	Backend  string        `yaml:"backend"`
	Adapter  string        `yaml:"adapter"`
	Service  string        `yaml:"service"`
	Grants   []string      `yaml:"grants"`
	Duration time.Duration `yaml:"duration"`
	Filter   string        `yaml:"filter"`
	MQTT     MQTT          `yaml:"mqtt"`
	Listen   string        `yaml:"listen"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Backend:  BackendBLE,
		Adapter:  "hci0",
		Service:  "_services._dns-sd._udp",
		Duration: 12 * time.Second,
		Filter:   "*",
		MQTT: MQTT{
			ClientID: "scout",
			Topic:    "scout",
		},
		Listen: "localhost:4040",
	}
}

// Load reads an optional ".env" file, the configuration file at the
// specified path if it exists and applies environment overrides.
func Load(path string) (*Config, error) {
	// load env file
	_ = godotenv.Load()

	// read or create config
	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		cfg, err = Read(path)
		if err != nil {
			return nil, err
		}
	}

	// apply environment
	err := cfg.Apply(os.LookupEnv)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Read will attempt to read the configuration file at the specified path.
func Read(path string) (*Config, error) {
	// read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// decode data onto defaults
	cfg := Default()
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, err
	}

	// validate
	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save will write the configuration file to the specified path.
func (c *Config) Save(path string) error {
	// encode data
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	// write file
	err = os.WriteFile(path, data, 0644)
	if err != nil {
		return err
	}

	return nil
}

// Apply applies SCOUT_* overrides using the provided lookup function.
func (c *Config) Apply(lookup func(string) (string, bool)) error {
	// prepare string fields
	fields := map[string]*string{
		"SCOUT_BACKEND":        &c.Backend,
		"SCOUT_ADAPTER":        &c.Adapter,
		"SCOUT_SERVICE":        &c.Service,
		"SCOUT_FILTER":         &c.Filter,
		"SCOUT_MQTT_URL":       &c.MQTT.URL,
		"SCOUT_MQTT_CLIENT_ID": &c.MQTT.ClientID,
		"SCOUT_MQTT_TOPIC":     &c.MQTT.Topic,
		"SCOUT_LISTEN":         &c.Listen,
	}

	// apply string fields
	for key, field := range fields {
		if value, ok := lookup(key); ok {
			*field = value
		}
	}

	// apply grants
	if value, ok := lookup("SCOUT_GRANTS"); ok {
		c.Grants = nil
		for _, name := range strings.Split(value, ",") {
			if strings.TrimSpace(name) != "" {
				c.Grants = append(c.Grants, name)
			}
		}
	}

	// apply duration
	if value, ok := lookup("SCOUT_DURATION"); ok {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid SCOUT_DURATION: %w", err)
		}
		c.Duration = d
	}

	return c.Validate()
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	// check backend
	if c.Backend != BackendBLE && c.Backend != BackendMDNS {
		return fmt.Errorf("unknown backend: %q", c.Backend)
	}

	// check grants
	_, err := grant.Parse(c.Grants)
	if err != nil {
		return err
	}

	// check duration
	if c.Duration < 0 {
		return fmt.Errorf("negative duration: %s", c.Duration)
	}

	return nil
}

// ParsedGrants returns the pre-authorized grants.
func (c *Config) ParsedGrants() []scan.Grant {
	list, _ := grant.Parse(c.Grants)
	return list
}
