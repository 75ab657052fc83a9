package main

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "dev"

	// Configuration flags.
	configFile string
	verbose    bool
	quiet      bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "rtcwaked",
	Short: "Scheduled suspend, hibernate and power off with RTC wake-up",
	Long: `rtcwaked is a background daemon that follows a shutdown/wake schedule:
  - Plans the next single-shot or weekly occurrence
  - Programs the RTC alarm with rtcwake
  - Warns the desktop user and honours snooze or cancel
  - Suspends, hibernates or powers off the machine
  - Optionally shuts down and wakes companion hosts and notifies via Telegram

The schedule itself is written by a separate editor; the daemon follows its changes.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
	SilenceUsage: true,
	Version:      Version,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "daemon config file (YAML)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	flags.BoolVarP(&quiet, "quiet", "q", false, "enable quiet mode (errors only)")
	flags.BoolVar(&jsonOutput, "json", false, "output logs in JSON format")

	flags.String("schedule", "", "schedule document written by the editor")
	flags.String("user", "", "desktop user the warning is shown to")
	flags.String("home", "", "home directory of the desktop user")
	flags.String("warning-app", "", "warning dialog executable (empty disables warnings)")
	flags.String("rtcwake", "", "rtcwake executable")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(nextCmd)
}

func setupLogging() {
	if jsonOutput {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
		output.FormatLevel = func(i interface{}) string {
			if s, ok := i.(string); ok {
				return strings.ToUpper(s)
			}
			return ""
		}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	switch {
	case quiet:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
