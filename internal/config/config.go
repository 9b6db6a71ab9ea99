// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads signalbox settings.
//
// Precedence, highest first: command-line flags, SIGNALBOX_* environment
// variables, the TOML config file, built-in defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Thermoquad/signalbox/pkg/led"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SIGNALBOX_"

// Serial holds serial link settings.
type Serial struct {
	Port string `toml:"port"`
	Baud int    `toml:"baud"`
}

// WebSocket holds bridge link settings. The password is never stored in
// the config file.
type WebSocket struct {
	URL         string `toml:"url"`
	Username    string `toml:"username"`
	NoSSLVerify bool   `toml:"no_ssl_verify"`
}

// LED holds indicator backend settings.
type LED struct {
	Backend   string `toml:"backend"`
	LED1      string `toml:"led1"`
	LED2      string `toml:"led2"`
	ActiveLow bool   `toml:"active_low"`
	SysfsRoot string `toml:"sysfs_root"`
}

// Metrics holds the Prometheus endpoint address. Empty disables it.
type Metrics struct {
	Addr string `toml:"addr"`
}

// MQTT holds state publishing settings. Empty broker disables it.
type MQTT struct {
	Broker   string `toml:"broker"`
	Topic    string `toml:"topic"`
	ClientID string `toml:"client_id"`
}

// Logging holds logger settings.
type Logging struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

// Config is the complete signalbox configuration.
type Config struct {
	Serial    Serial    `toml:"serial"`
	WebSocket WebSocket `toml:"websocket"`
	LED       LED       `toml:"led"`
	Metrics   Metrics   `toml:"metrics"`
	MQTT      MQTT      `toml:"mqtt"`
	Logging   Logging   `toml:"logging"`
}

// Default returns the built-in configuration.
func Default() Config {
	ledDefaults := led.DefaultConfig()
	return Config{
		Serial: Serial{Baud: 115200},
		LED: LED{
			Backend: ledDefaults.Backend,
			LED1:    ledDefaults.LED1,
			LED2:    ledDefaults.LED2,
		},
		MQTT:    MQTT{Topic: "signalbox/state"},
		Logging: Logging{Level: "info"},
	}
}

// Load returns defaults overlaid with the TOML file at path and then the
// environment. An empty path skips the file. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return cfg, fmt.Errorf("failed to parse config %s: %s", path, strict.String())
			}
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
		return nil
	}

	str("PORT", &c.Serial.Port)
	if v, ok := lookup(EnvPrefix + "BAUD"); ok && v != "" {
		baud, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sBAUD: %w", EnvPrefix, err)
		}
		c.Serial.Baud = baud
	}
	str("URL", &c.WebSocket.URL)
	str("USERNAME", &c.WebSocket.Username)
	str("LED_BACKEND", &c.LED.Backend)
	str("LED1", &c.LED.LED1)
	str("LED2", &c.LED.LED2)
	str("METRICS_ADDR", &c.Metrics.Addr)
	str("MQTT_BROKER", &c.MQTT.Broker)
	str("MQTT_TOPIC", &c.MQTT.Topic)
	str("LOG_LEVEL", &c.Logging.Level)

	if err := boolean("NO_SSL_VERIFY", &c.WebSocket.NoSSLVerify); err != nil {
		return err
	}
	if err := boolean("LED_ACTIVE_LOW", &c.LED.ActiveLow); err != nil {
		return err
	}
	return boolean("LOG_JSON", &c.Logging.JSON)
}

// ApplyFlags copies every flag the user set explicitly into the config.
// Flags left at their defaults do not override file or environment values.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	var firstErr error
	fs.Visit(func(f *pflag.Flag) {
		if err := c.applyFlag(f.Name, f.Value.String()); err != nil && firstErr == nil {
			firstErr = err
		}
	})
	return firstErr
}

func (c *Config) applyFlag(name, value string) error {
	switch name {
	case "port":
		c.Serial.Port = value
	case "baud":
		baud, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid --baud: %w", err)
		}
		c.Serial.Baud = baud
	case "url":
		c.WebSocket.URL = value
	case "username":
		c.WebSocket.Username = value
	case "no-ssl-verify":
		c.WebSocket.NoSSLVerify = value == "true"
	case "led-backend":
		c.LED.Backend = value
	case "led1":
		c.LED.LED1 = value
	case "led2":
		c.LED.LED2 = value
	case "active-low":
		c.LED.ActiveLow = value == "true"
	case "metrics-addr":
		c.Metrics.Addr = value
	case "mqtt":
		c.MQTT.Broker = value
	case "mqtt-topic":
		c.MQTT.Topic = value
	case "log-level":
		c.Logging.Level = value
	case "log-json":
		c.Logging.JSON = value == "true"
	}
	return nil
}

// Validate checks settings that would only fail later at open time.
func (c *Config) Validate() error {
	var problems []string
	if c.Serial.Baud <= 0 {
		problems = append(problems, fmt.Sprintf("serial.baud must be positive, got %d", c.Serial.Baud))
	}
	if c.LED.LED1 == "" || c.LED.LED2 == "" {
		problems = append(problems, "led.led1 and led.led2 must name backend lines")
	} else if c.LED.LED1 == c.LED.LED2 {
		problems = append(problems, "led.led1 and led.led2 must differ")
	}
	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		problems = append(problems, "mqtt.topic is required when mqtt.broker is set")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// LEDConfig converts the LED section for led.Open.
func (c *Config) LEDConfig() led.Config {
	return led.Config{
		Backend:   c.LED.Backend,
		LED1:      c.LED.LED1,
		LED2:      c.LED.LED2,
		ActiveLow: c.LED.ActiveLow,
		SysfsRoot: c.LED.SysfsRoot,
	}
}
