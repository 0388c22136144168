// Package main provides the entry point for the soundbox CLI application.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/soundbox/internal/tts"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile        string
	defaultConfigPath string
	debug             bool
	closeLog          = func() error { return nil }

	rootCmd = &cobra.Command{
		Use:   "soundbox",
		Short: "Turn long text into one WAV file, fragment by fragment",
		Long: paragraph(
			fmt.Sprintf("\nTurn long text into %s. Text is split under the engine's character limit, synthesized fragment by fragment, and joined back together.", keyword("one playable WAV file")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configFile != "" {
				viper.SetConfigFile(configFile)
				// config creates the file if it is missing
				if err := viper.ReadInConfig(); err != nil && cmd.Name() != "config" {
					return fmt.Errorf("unable to read config file: %w", err)
				}
			}

			closer, err := setupLog()
			if err != nil {
				return err
			}
			closeLog = closer

			if used := viper.ConfigFileUsed(); used != "" {
				log.Debug("Using configuration file", "path", used)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// loadConfig reads the tts section of the configuration.
func loadConfig() (tts.Config, error) {
	cfg, err := tts.LoadConfigFromViper()
	if err != nil {
		return tts.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func main() {
	err := rootCmd.Execute()
	_ = closeLog()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file", "")
	tts.SetDefaults()

	rootCmd.AddCommand(speakCmd, splitCmd, serveCmd, cacheCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "soundbox")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "soundbox")}, dirs...)
	}

	if c := os.Getenv("SOUNDBOX_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("soundbox")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("soundbox")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	defaultConfigPath = viper.ConfigFileUsed()
	if defaultConfigPath == "" {
		defaultConfigPath = filepath.Join(dirs[0], "soundbox.yml")
	}
}
