package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/fgeck/rtcwaked/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleEvent() (models.PlannedEvent, time.Time) {
	now := time.Date(2030, 1, 1, 20, 0, 0, 0, time.UTC)
	return models.PlannedEvent{
		Shutdown: time.Date(2030, 1, 1, 22, 0, 0, 0, time.UTC),
		Wake:     time.Date(2030, 1, 2, 6, 0, 0, 0, time.UTC),
		Action:   models.ActionPowerOff,
		Source:   "single",
	}, now
}

func TestRenderNext_Text(t *testing.T) {
	event, now := sampleEvent()
	var buf bytes.Buffer

	require.NoError(t, renderNext(&buf, "text", event, true, now))

	out := buf.String()
	assert.Contains(t, out, "Power off (single)")
	assert.Contains(t, out, "shutdown: Tue 2030-01-01 22:00 (2 hours from now)")
	assert.Contains(t, out, "wake:     Wed 2030-01-02 06:00 (10 hours from now)")
}

func TestRenderNext_TextNone(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, renderNext(&buf, "text", models.PlannedEvent{}, false, time.Now()))

	assert.Equal(t, "No upcoming events.\n", buf.String())
}

func TestRenderNext_JSON(t *testing.T) {
	event, now := sampleEvent()
	var buf bytes.Buffer

	require.NoError(t, renderNext(&buf, "json", event, true, now))

	var view nextView
	require.NoError(t, json.Unmarshal(buf.Bytes(), &view))
	assert.Equal(t, nextView{
		Found:    true,
		Source:   "single",
		Shutdown: "2030-01-01T22:00:00Z",
		Wake:     "2030-01-02T06:00:00Z",
		Mode:     "off",
		Action:   "Power off",
	}, view)
}

func TestRenderNext_YAML(t *testing.T) {
	event, now := sampleEvent()
	var buf bytes.Buffer

	require.NoError(t, renderNext(&buf, "yaml", event, true, now))

	var view nextView
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &view))
	assert.True(t, view.Found)
	assert.Equal(t, "off", view.Mode)
	assert.Contains(t, buf.String(), "action: Power off")
}

func TestRenderNext_UnknownFormat(t *testing.T) {
	event, now := sampleEvent()

	err := renderNext(&bytes.Buffer{}, "xml", event, true, now)

	assert.Error(t, err)
}
