package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/fgeck/rtcwaked/internal/models"
	"github.com/fgeck/rtcwaked/internal/services/summary"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintPowerState(t *testing.T) {
	var buf bytes.Buffer

	printPowerState(&buf, models.PowerStateOption{Action: models.ActionHibernate, Available: false})

	out := buf.String()
	assert.Contains(t, out, "Hibernate")
	assert.Contains(t, out, "disk")
	assert.Contains(t, out, " no ")
	assert.Contains(t, out, models.ActionHibernate.Description())
}

func TestPrintArmed(t *testing.T) {
	fs := afero.NewMemMapFs()
	writer := summary.NewWriter(fs, "/state", nil)

	var buf bytes.Buffer
	printArmed(&buf, writer)
	assert.Equal(t, "Armed wake: (none recorded)\n", buf.String())

	event := models.PlannedEvent{
		Shutdown: time.Date(2030, 1, 1, 22, 0, 0, 0, time.UTC),
		Wake:     time.Date(2030, 1, 2, 6, 0, 0, 0, time.UTC),
		Action:   models.ActionSuspendToRAM,
	}
	require.NoError(t, fs.MkdirAll("/state", 0o755))
	_, err := writer.Write(event)
	require.NoError(t, err)

	buf.Reset()
	printArmed(&buf, writer)
	assert.Equal(t, "Armed wake: Wednesday, January 2, 2030 06:00:00 UTC (Suspend to RAM, mode mem)\n", buf.String())

	require.NoError(t, afero.WriteFile(fs, writer.Path(), []byte("{broken"), 0o644))
	buf.Reset()
	printArmed(&buf, writer)
	assert.Contains(t, buf.String(), "Armed wake: unreadable")
}
