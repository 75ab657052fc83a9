package daemon

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fsnotify/fsnotify"
)

// maxSleep caps every event timer. Monotonic timers stop while the machine
// is suspended, so long waits are split and rechecked against the wall clock.
const maxSleep = time.Minute

// Run starts the daemon and processes timers and schedule changes until ctx
// is canceled. Failures inside the loop are logged, never returned.
func (d *Impl) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create schedule watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	target := filepath.Clean(d.store.Path())
	// watch the directory so editors that replace the file are still seen
	dir := filepath.Dir(target)
	if err := watcher.Add(dir); err != nil {
		d.logger.Warn().Err(err).Str("dir", dir).Msg("cannot watch schedule, relying on periodic refresh")
	}

	d.Start(ctx)

	ticker := d.clock.Ticker(d.opts.PeriodicInterval)
	defer ticker.Stop()

	var (
		debounce  *clock.Timer
		debounceC <-chan time.Time
		events    = watcher.Events
		errs      = watcher.Errors
	)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		eventTimer, eventC := d.armEventTimer()

		select {
		case <-ctx.Done():
			stopTimer(eventTimer)
			d.Stop()
			return nil

		case ev, ok := <-events:
			if !ok {
				events = nil
				break
			}
			if filepath.Clean(ev.Name) != target || !relevant(ev.Op) {
				break
			}
			d.ConfigChanged(ev.Op.String())
			if debounce != nil {
				debounce.Stop()
			}
			debounce = d.clock.Timer(d.opts.Debounce)
			debounceC = debounce.C

		case err, ok := <-errs:
			if !ok {
				errs = nil
				break
			}
			d.logger.Warn().Err(err).Msg("schedule watcher error")

		case <-debounceC:
			debounce, debounceC = nil, nil
			d.Reload(ctx)

		case <-ticker.C:
			d.Periodic(ctx)

		case <-eventC:
			d.HandleEventDue(ctx)
		}

		stopTimer(eventTimer)
	}
}

// armEventTimer returns the single event timer for the pending occurrence,
// or a nil channel when nothing is armed.
func (d *Impl) armEventTimer() (*clock.Timer, <-chan time.Time) {
	if d.pending == nil {
		return nil, nil
	}
	wait := d.pending.Due.Sub(d.clock.Now())
	if wait < 0 {
		wait = 0
	}
	if wait > maxSleep {
		wait = maxSleep
	}
	t := d.clock.Timer(wait)
	return t, t.C
}

func stopTimer(t *clock.Timer) {
	if t != nil {
		t.Stop()
	}
}

func relevant(op fsnotify.Op) bool {
	return op.Has(fsnotify.Write) || op.Has(fsnotify.Create) ||
		op.Has(fsnotify.Rename) || op.Has(fsnotify.Remove)
}
