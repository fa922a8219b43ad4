package main

import (
	"fmt"

	"gopkg.in/ini.v1"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init SECTION ENVFILE_PATH",
	Short: "Declare a project section in the s3conf config file",
	Long: "Writes (or updates) a section in s3conf.ini pointing at the remote " +
		"environment file, e.g.: s3conf init myapp s3://my-bucket/myapp/env",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := newSettings()
		if err != nil {
			return err
		}
		section, envPath := args[0], args[1]

		file, err := ini.LooseLoad(settings.ConfigFile)
		if err != nil {
			return fmt.Errorf("load config file %s: %w", settings.ConfigFile, err)
		}
		file.Section(section).Key("S3CONF").SetValue(envPath)
		if err := file.SaveTo(settings.ConfigFile); err != nil {
			return fmt.Errorf("write config file %s: %w", settings.ConfigFile, err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), green(fmt.Sprintf("section %q added to %s", section, settings.ConfigFile)))
		return nil
	},
}
