package main

import (
	"fmt"

	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"
)

var manCmd = &cobra.Command{
	Use:                   "man",
	Short:                 "Generates manpages",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Hidden:                true,
	Args:                  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		manPage, err := mcobra.NewManPage(1, rootCmd)
		if err != nil {
			return err
		}

		manPage = manPage.WithSection("Environment", `SARVAM_API_KEY, SARVAM_BASE_URL, SOUNDBOX_ENGINE, SOUNDBOX_LANGUAGE,
SOUNDBOX_SPEAKER, SOUNDBOX_MODEL, SOUNDBOX_CONCURRENCY, SOUNDBOX_MAX_LENGTH,
SOUNDBOX_MIN_FORCE_SPLIT_LENGTH, SOUNDBOX_CACHE_DIR and SOUNDBOX_CONFIG_HOME
override the configuration file.`)

		_, err = fmt.Fprint(cmd.OutOrStdout(), manPage.Build(roff.NewDocument()))
		return err
	},
}
