package app

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

// Config contains global runtime configuration.
type Config struct {
	Workspace string
	Manifests string // optional manifest directory; empty means built-in
	LogLevel  string
	Timeout   time.Duration
}

// MustLoadConfigFromViper builds Config from Viper-bound flags/env.
func MustLoadConfigFromViper() Config {
	ws := viper.GetString("workspace")
	if ws == "" {
		panic("workspace is empty")
	}
	return Config{
		Workspace: ws,
		Manifests: viper.GetString("manifests"),
		LogLevel:  viper.GetString("log_level"),
		Timeout:   viper.GetDuration("timeout"),
	}
}

// Validate returns error if configuration is invalid.
func (c Config) Validate() error {
	if c.Workspace == "" {
		return fmt.Errorf("workspace cannot be empty")
	}
	return nil
}

// NewLogger builds the process logger at the configured level.
func NewLogger(level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:        lvl,
		ReportCaller: false,
		Prefix:       "arsenal",
	})
}
