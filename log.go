package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// setupLog sends logs to stderr, or to log.file when configured. The
// returned func closes the log file.
func setupLog() (func() error, error) {
	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(false)
	log.SetLevel(log.InfoLevel)

	if viper.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	} else if lvl := viper.GetString("log.level"); lvl != "" {
		level, err := log.ParseLevel(lvl)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", lvl, err)
		}
		log.SetLevel(level)
	}

	path := viper.GetString("log.file")
	if path == "" {
		return func() error { return nil }, nil
	}

	path, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("unable to expand log file path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec
		return nil, fmt.Errorf("unable to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("unable to open log file: %w", err)
	}

	log.SetOutput(f)
	log.SetReportTimestamp(true)
	return f.Close, nil
}
