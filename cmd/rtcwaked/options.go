package main

import (
	"fmt"

	"github.com/fgeck/rtcwaked/internal/config"
	"github.com/fgeck/rtcwaked/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// loadOptions merges defaults, the optional config file and flags. With
// strict set the result must be complete enough to run the daemon.
func loadOptions(cmd *cobra.Command, strict bool) (*models.DaemonOptions, error) {
	parser := config.NewParser()
	if err := parser.BindFlags(cmd.Flags()); err != nil {
		return nil, err
	}

	opts, err := parser.Load(configFile)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to load config")
		return nil, err
	}

	if !strict {
		if opts.ScheduleFile == "" {
			err := fmt.Errorf("schedule_file is required")
			log.Error().Err(err).Msg("invalid configuration")
			return nil, err
		}
		return opts, nil
	}

	if err := config.Validate(opts); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return nil, err
	}
	return opts, nil
}
