package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# enable debug logging
debug: false

log:
  # debug, info, warn or error
  level: "info"
  # write logs to this file instead of stderr
  # file: "~/.cache/soundbox/soundbox.log"

tts:
  # TTS engine: sarvam or mock
  engine: "sarvam"
  # target language code
  language: "hi-IN"
  speaker: "anushka"
  model: "bulbul:v2"
  # fragments synthesized in parallel (1-16)
  concurrency: 1

  segment:
    # longest fragment sent to the engine, in characters
    max_length: 1500
    # texts at least this long may be split even when under max_length
    min_force_split_length: 20
    # also split on danda and double danda
    indic_delimiters: false

  sarvam:
    # prefer the SARVAM_API_KEY environment variable
    # api_key: ""
    base_url: "https://api.sarvam.ai"
    timeout: "30s"
    requests_per_minute: 60

  # offline engine producing tones, for testing
  mock:
    sample_rate: 22050
    channels: 1
    bit_depth: 16
    words_per_minute: 150
    failure_rate: 0.0

  cache:
    enabled: true
    # memory, disk or badger
    backend: "disk"
    # dir: "~/.cache/soundbox/disk"
    memory_mb: 64
    disk_mb: 512
    ttl_days: 7
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the soundbox config file",
	Long:    paragraph(fmt.Sprintf("\n%s the soundbox config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("soundbox config\nsoundbox config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("soundbox", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
	}
	if configFile == "" {
		configFile = defaultConfigPath
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
