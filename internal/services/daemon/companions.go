package daemon

import (
	"context"

	"github.com/fgeck/rtcwaked/internal/models"
	"github.com/fgeck/rtcwaked/internal/services/summary"
)

// shutdownCompanions powers off every companion with a shutdown block before
// this machine goes down. Failures never stop the action.
func (d *Impl) shutdownCompanions(ctx context.Context) {
	for _, c := range d.opts.Companions {
		if c.Shutdown == nil {
			continue
		}

		result := d.svc.SSH.Shutdown(ctx, c.Name, *c.Shutdown)
		fields := []summary.Field{
			summary.F("name", c.Name),
			summary.F("step", "shutdown"),
			summary.F("host", c.Shutdown.Host),
			summary.F("command_run", result.CommandRun),
		}
		if result.Error != nil && !result.CommandRun {
			d.logger.Error().
				Err(result.Error).
				Str("companion", c.Name).
				Msg("companion shutdown failed")
			fields = append(fields, summary.F("error", result.Error))
		}
		d.audit("companion", fields...)
	}
}

// wakeCompanions sends Wake-on-LAN to every companion with a MAC address
// once this machine has resumed.
func (d *Impl) wakeCompanions(ctx context.Context) {
	for _, c := range d.opts.Companions {
		if c.WOL == nil {
			continue
		}

		result := d.svc.WOL.Wake(ctx, c.Name, *c.WOL)
		fields := []summary.Field{
			summary.F("name", c.Name),
			summary.F("step", "wake"),
			summary.F("packet_sent", result.PacketSent),
			summary.F("ready", result.TargetReady),
		}
		if result.Error != nil {
			d.logger.Error().
				Err(result.Error).
				Str("companion", c.Name).
				Msg("companion wake failed")
			fields = append(fields, summary.F("error", result.Error))
		} else {
			d.logger.Info().
				Str("companion", c.Name).
				Bool("ready", result.TargetReady).
				Dur("wait_duration", result.WaitDuration).
				Msg("companion woken")
		}
		d.audit("companion", fields...)
	}
}

func (d *Impl) notify(ctx context.Context, msg models.TelegramMessage) {
	if d.opts.Telegram == nil || d.svc.Telegram == nil {
		return
	}

	result := d.svc.Telegram.SendNotification(ctx, *d.opts.Telegram, msg)
	if result.Error != nil {
		d.logger.Error().Err(result.Error).Msg("failed to send Telegram notification")
		return
	}
	d.logger.Debug().Msg("Telegram notification sent")
}
