package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fgeck/rtcwaked/internal/config"
	"github.com/fgeck/rtcwaked/internal/models"
	"github.com/fgeck/rtcwaked/internal/services/planner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	nextOutput string
	nextAt     string
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the next planned occurrence",
	Long: `Run the planner against the current schedule and print the next
shutdown/wake occurrence without programming the RTC.`,
	RunE: showNext,
}

func init() {
	nextCmd.Flags().StringVarP(&nextOutput, "output", "o", "text", "output format: text, json or yaml")
	nextCmd.Flags().StringVar(&nextAt, "at", "", "plan as if it were this RFC 3339 instant")
}

// nextView is the machine readable form of a planned occurrence.
type nextView struct {
	Found    bool   `json:"found" yaml:"found"`
	Source   string `json:"source,omitempty" yaml:"source,omitempty"`
	Shutdown string `json:"shutdown,omitempty" yaml:"shutdown,omitempty"`
	Wake     string `json:"wake,omitempty" yaml:"wake,omitempty"`
	Mode     string `json:"mode,omitempty" yaml:"mode,omitempty"`
	Action   string `json:"action,omitempty" yaml:"action,omitempty"`
}

func showNext(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions(cmd, false)
	if err != nil {
		return err
	}

	now := time.Now()
	if nextAt != "" {
		now, err = time.Parse(time.RFC3339, nextAt)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
	}

	cfg, err := config.NewScheduleStore(afero.NewOsFs(), opts.ScheduleFile).Load()
	if err != nil {
		log.Warn().Err(err).Msg("schedule unavailable, planning with defaults")
	}

	event, ok := planner.NextEvent(cfg, now)
	return renderNext(os.Stdout, nextOutput, event, ok, now)
}

func renderNext(w io.Writer, format string, event models.PlannedEvent, ok bool, now time.Time) error {
	view := nextView{Found: ok}
	if ok {
		view.Source = event.Source
		view.Shutdown = event.Shutdown.Format(time.RFC3339)
		view.Wake = event.Wake.Format(time.RFC3339)
		view.Mode = event.Action.Mode()
		view.Action = event.Action.Label()
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		return enc.Encode(view)
	case "text", "":
		if !ok {
			_, err := fmt.Fprintln(w, "No upcoming events.")
			return err
		}
		_, err := fmt.Fprintf(w, "%s (%s)\n  shutdown: %s (%s)\n  wake:     %s (%s)\n",
			event.Action.Label(), event.Source,
			event.Shutdown.Format("Mon 2006-01-02 15:04"), humanize.RelTime(event.Shutdown, now, "ago", "from now"),
			event.Wake.Format("Mon 2006-01-02 15:04"), humanize.RelTime(event.Wake, now, "ago", "from now"),
		)
		return err
	}
	return fmt.Errorf("unknown output format %q", format)
}
