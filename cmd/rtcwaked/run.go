package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fgeck/rtcwaked/internal/config"
	"github.com/fgeck/rtcwaked/internal/services/daemon"
	"github.com/fgeck/rtcwaked/internal/services/rtcwake"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduling daemon",
	Long: `Run the daemon in the foreground until SIGINT or SIGTERM:
1. Load the schedule and plan the next occurrence
2. Program the RTC alarm for its wake time
3. At shutdown time show the warning dialog (if configured)
4. Apply, snooze or cancel according to the user's answer
5. Replan on schedule changes, every periodic interval and after each action`,
	RunE: runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions(cmd, true)
	if err != nil {
		return err
	}

	log.Info().
		Str("schedule", opts.ScheduleFile).
		Str("user", opts.TargetUser).
		Str("state_dir", opts.StateDir).
		Bool("warnings", opts.WarningApp != "").
		Int("companions", len(opts.Companions)).
		Msg("configuration loaded")

	warnUnsupportedAction(opts.ScheduleFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
		cancel()
	}()

	d := daemon.New(log.Logger, *opts)
	if err := d.Run(ctx); err != nil {
		log.Error().Err(err).Msg("daemon failed")
		return err
	}

	log.Info().Msg("daemon stopped")
	return nil
}

// warnUnsupportedAction logs when the kernel lacks the configured sleep state.
func warnUnsupportedAction(scheduleFile string) {
	fs := afero.NewOsFs()
	cfg, err := config.NewScheduleStore(fs, scheduleFile).Load()
	if err != nil {
		return
	}
	states := rtcwake.DetectPowerStates(fs)
	if !rtcwake.Supported(states, cfg.Action) {
		log.Warn().
			Str("action", cfg.Action.Label()).
			Str("mode", cfg.Action.Mode()).
			Msg("configured action is not supported by this kernel")
	}
}
