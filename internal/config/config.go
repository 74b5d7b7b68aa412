// Package config loads the web server configuration from defaults, an
// optional JSON file and the environment.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "robot_locus"

// Settings is the resolved web server configuration.
type Settings struct {
	LogLevel     string
	DefaultPort  int
	ListenPort   string
	Bearer       string
	Prefix       string
	Endpoint     string
	Demo         bool
	Interval     time.Duration
	DefaultBound float64
	Timeout      time.Duration
}

// Load reads configuration from configDir (if a robot_locus.json file is
// present) and the environment. A missing config file is not an error.
func Load(configDir string) (Settings, error) {
	v := viper.New()

	v.SetDefault("logLevel", "info")
	v.SetDefault("defaultPort", 8080)
	v.SetDefault("listenPort", "")
	v.SetDefault("bearerAuth", "")
	v.SetDefault("prefix", "")
	v.SetDefault("positions.endpoint", "")
	v.SetDefault("positions.demo", true)
	v.SetDefault("positions.timeout", "30s")
	v.SetDefault("replay.interval", "100ms")
	v.SetDefault("replay.defaultBound", 0.1)

	// Environment names kept from the original deployment.
	_ = v.BindEnv("logLevel", "LOG_LEVEL")
	_ = v.BindEnv("listenPort", "LISTEN_PORT")
	_ = v.BindEnv("bearerAuth", "BEARER_AUTH")
	_ = v.BindEnv("prefix", "PREFIX")
	_ = v.BindEnv("positions.endpoint", "POSITIONS_ENDPOINT")

	v.SetConfigName(FileName)
	v.SetConfigType("json")
	if configDir != "" {
		v.AddConfigPath(configDir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return Settings{
		LogLevel:     v.GetString("logLevel"),
		DefaultPort:  v.GetInt("defaultPort"),
		ListenPort:   v.GetString("listenPort"),
		Bearer:       v.GetString("bearerAuth"),
		Prefix:       v.GetString("prefix"),
		Endpoint:     v.GetString("positions.endpoint"),
		Demo:         v.GetBool("positions.demo"),
		Interval:     v.GetDuration("replay.interval"),
		DefaultBound: v.GetFloat64("replay.defaultBound"),
		Timeout:      v.GetDuration("positions.timeout"),
	}, nil
}

// Port resolves the listen port. An unset, non-numeric or out of range
// LISTEN_PORT falls back to the default port.
func (s Settings) Port() int {
	if s.ListenPort == "" {
		return s.DefaultPort
	}
	port, err := strconv.Atoi(s.ListenPort)
	if err != nil || port < 1 || port > 65535 {
		return s.DefaultPort
	}
	return port
}
