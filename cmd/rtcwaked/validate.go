package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fgeck/rtcwaked/internal/config"
	"github.com/fgeck/rtcwaked/internal/models"
	"github.com/fgeck/rtcwaked/internal/services/rtcwake"
	"github.com/fgeck/rtcwaked/internal/services/ssh"
	"github.com/fgeck/rtcwaked/internal/services/summary"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var checkCompanions bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate daemon options and the schedule document",
	Long: `Validate the daemon options and the schedule document without arming
anything, and report which power states this machine supports.`,
	RunE: validateConfig,
}

func init() {
	validateCmd.Flags().BoolVar(&checkCompanions, "check-companions", false, "test SSH connectivity to companion hosts")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions(cmd, true)
	if err != nil {
		return err
	}

	fs := afero.NewOsFs()
	cfg, err := config.NewScheduleStore(fs, opts.ScheduleFile).Load()
	if err != nil {
		if !errors.Is(err, config.ErrScheduleUnavailable) {
			return err
		}
		log.Warn().Err(err).Msg("schedule unavailable, the daemon would use defaults")
	}

	fmt.Println("Configuration is valid!")
	fmt.Println()
	fmt.Println("Daemon:")
	fmt.Printf("  Schedule: %s\n", opts.ScheduleFile)
	fmt.Printf("  User: %s\n", opts.TargetUser)
	fmt.Printf("  Home: %s\n", opts.TargetHome)
	fmt.Printf("  State dir: %s\n", opts.StateDir)
	fmt.Printf("  rtcwake: %s\n", opts.RTCWakePath)
	fmt.Printf("  Periodic refresh: %s\n", opts.PeriodicInterval)
	fmt.Printf("  Command timeout: %s\n", timeoutLabel(opts.CommandTimeout))
	if opts.WarningApp != "" {
		fmt.Printf("  Warning app: %s\n", opts.WarningApp)
	} else {
		fmt.Println("  Warning app: (none, actions apply without asking)")
	}

	printSchedule(cfg)

	states := rtcwake.DetectPowerStates(fs)
	fmt.Println()
	fmt.Println("Power states:")
	for _, s := range states {
		printPowerState(os.Stdout, s)
	}
	if !rtcwake.Supported(states, cfg.Action) {
		log.Warn().Str("action", cfg.Action.Label()).Msg("configured action is not supported by this kernel")
	}

	fmt.Println()
	printArmed(os.Stdout, summary.NewWriter(fs, opts.StateDir, nil))

	if len(opts.Companions) > 0 {
		fmt.Println()
		fmt.Println("Companions:")
		for _, c := range opts.Companions {
			fmt.Printf("  %s: wake=%v shutdown=%v\n", c.Name, c.WOL != nil, c.Shutdown != nil)
		}
	}

	if opts.Telegram != nil {
		fmt.Println()
		fmt.Println("Telegram Configuration:")
		fmt.Printf("  Chat ID: %s\n", opts.Telegram.ChatID)
		fmt.Printf("  Bot Token: (configured)\n")
	}

	if checkCompanions {
		return testCompanions(cmd.Context(), opts.Companions)
	}
	return nil
}

func printSchedule(cfg models.ScheduleConfig) {
	fmt.Println()
	fmt.Println("Schedule:")
	fmt.Printf("  Action: %s (%s)\n", cfg.Action.Label(), cfg.Action.Mode())
	if cfg.SingleShutdown.Valid() && cfg.SingleWake.Valid() {
		fmt.Printf("  Single: %s %s -> %s %s\n",
			cfg.SingleShutdown.Date, cfg.SingleShutdown.Time,
			cfg.SingleWake.Date, cfg.SingleWake.Time)
	}
	for _, e := range cfg.Weekly {
		if !e.Enabled {
			continue
		}
		fmt.Printf("  %-9s %s -> %s\n", e.Day, e.ShutdownTime, e.WakeTime)
	}
	if cfg.Warning.Enabled {
		fmt.Printf("  Warning: %ds countdown, %d min snooze\n", cfg.Warning.CountdownSeconds, cfg.Warning.SnoozeMinutes)
	}
}

func printPowerState(w io.Writer, s models.PowerStateOption) {
	available := "yes"
	if !s.Available {
		available = "no"
	}
	fmt.Fprintf(w, "  %-16s %-7s %-4s %s\n", s.Action.Label(), s.Action.Mode(), available, s.Action.Description())
}

// printArmed reports the wake the running daemon last recorded.
func printArmed(w io.Writer, writer *summary.FileWriter) {
	record, err := writer.Read()
	switch {
	case errors.Is(err, os.ErrNotExist):
		fmt.Fprintln(w, "Armed wake: (none recorded)")
	case err != nil:
		fmt.Fprintf(w, "Armed wake: unreadable (%v)\n", err)
	default:
		fmt.Fprintf(w, "Armed wake: %s (%s, mode %s)\n", record.Friendly, record.Action, record.Mode)
	}
}

func testCompanions(ctx context.Context, companions []models.CompanionConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	svc := ssh.New(log.Logger)

	var failed int
	for _, c := range companions {
		if c.Shutdown == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		result := svc.TestConnection(ctx, c.Name, *c.Shutdown)
		cancel()
		if result.Error != nil {
			failed++
			log.Error().Err(result.Error).Str("companion", c.Name).Msg("SSH connection failed")
			continue
		}
		log.Info().Str("companion", c.Name).Msg("SSH connection ok")
	}
	if failed > 0 {
		return fmt.Errorf("%d companion(s) unreachable", failed)
	}
	return nil
}

func timeoutLabel(d time.Duration) string {
	if d <= 0 {
		return "none"
	}
	return d.String()
}
