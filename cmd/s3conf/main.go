package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/sbneto/s3conf/internal/config"
	"github.com/sbneto/s3conf/internal/s3sync"
	"github.com/sbneto/s3conf/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	red   = color.New(color.FgHiRed, color.Bold).SprintFunc()
	green = color.New(color.FgHiGreen).SprintFunc()
)

var logLevel = new(slog.LevelVar)

var rootCmd = &cobra.Command{
	Use:     "s3conf",
	Short:   "Manage environment files and mapped artifacts on S3-compatible storage",
	Version: version.Detailed(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd); err != nil {
			return err
		}
		if viper.GetBool("debug") {
			logLevel.Set(slog.LevelDebug)
		}
		cmd.SilenceUsage = true
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().SortFlags = false
	rootCmd.PersistentFlags().StringP("config", "c", "", "s3conf config file (default: s3conf.ini found walking up from the working directory)")
	rootCmd.PersistentFlags().StringP("section", "s", "", "config file section to read settings from")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(envCmd, pushCmd, pullCmd, setCmd, unsetCmd, editCmd, execCmd, initCmd)
}

func main() {
	logLevel.Set(slog.LevelInfo)
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: time.Kitchen,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// A child started by exec already reported itself; propagate its
		// status unchanged.
		if code, ok := childExitCode(err); ok {
			stop()
			os.Exit(code)
		}
		fmt.Fprintln(os.Stderr, red("error:"), err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	flags := cmd.Root().PersistentFlags()
	viper.BindPFlag("config", flags.Lookup("config"))
	viper.BindPFlag("section", flags.Lookup("section"))
	viper.BindPFlag("debug", flags.Lookup("debug"))

	viper.SetEnvPrefix("S3CONF_CLI")
	viper.AutomaticEnv()
	return nil
}

func newSettings() (*config.Settings, error) {
	return config.NewSettings(viper.GetString("section"), viper.GetString("config"))
}

func newSyncer() (*s3sync.Syncer, error) {
	settings, err := newSettings()
	if err != nil {
		return nil, err
	}
	return s3sync.New(settings), nil
}
