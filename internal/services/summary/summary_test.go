package summary

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fgeck/rtcwaked/internal/models"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stateDir = "/home/alice/.local/share/rtcwake-gui"

func testEvent() models.PlannedEvent {
	return models.PlannedEvent{
		Shutdown: time.Date(2030, 1, 1, 22, 0, 0, 0, time.UTC),
		Wake:     time.Date(2030, 1, 2, 6, 0, 0, 0, time.UTC),
		Action:   models.ActionPowerOff,
		Source:   "single",
	}
}

func TestNewRecord(t *testing.T) {
	record := NewRecord(testEvent())

	assert.Equal(t, int64(1893564000), record.Timestamp)
	assert.Equal(t, "2030-01-02T06:00:00Z", record.LocalTime)
	assert.Equal(t, "Wednesday, January 2, 2030 06:00:00 UTC", record.Friendly)
	assert.Equal(t, "off", record.Mode)
	assert.Equal(t, "Power off", record.Action)
}

func TestWriter_Write(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewWriter(fs, stateDir, nil)

	record, err := w.Write(testEvent())
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, stateDir+"/next-wake.json")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "}\n"))
	assert.Equal(t, 1, strings.Count(string(data), "\n"))

	var onDisk models.SummaryRecord
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, *record, onDisk)

	tmpExists, err := afero.Exists(fs, stateDir+"/next-wake.json.tmp")
	require.NoError(t, err)
	assert.False(t, tmpExists)
}

func TestWriter_Overwrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewWriter(fs, stateDir, nil)

	_, err := w.Write(testEvent())
	require.NoError(t, err)

	next := testEvent()
	next.Wake = next.Wake.Add(24 * time.Hour)
	next.Action = models.ActionHibernate
	_, err = w.Write(next)
	require.NoError(t, err)

	record, err := w.Read()
	require.NoError(t, err)
	assert.Equal(t, next.Wake.Unix(), record.Timestamp)
	assert.Equal(t, "disk", record.Mode)
	assert.Equal(t, "Hibernate", record.Action)
}

func TestWriter_NoDirectory(t *testing.T) {
	w := NewWriter(afero.NewMemMapFs(), "", nil)

	_, err := w.Write(testEvent())
	assert.Error(t, err)
}

func TestWriter_ChownsToOwner(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewWriter(fs, stateDir, &Owner{UID: 1000, GID: 1000})

	_, err := w.Write(testEvent())
	require.NoError(t, err)

	_, err = fs.Stat(w.Path())
	assert.NoError(t, err)
}

func TestWriter_ReadMissing(t *testing.T) {
	w := NewWriter(afero.NewMemMapFs(), stateDir, nil)

	_, err := w.Read()
	assert.True(t, os.IsNotExist(err))
}

func TestAuditLog_SanitizesEntries(t *testing.T) {
	fs := afero.NewMemMapFs()
	clk := clock.NewMock()
	clk.Set(time.Date(2030, 1, 1, 22, 0, 5, 0, time.Local))
	audit := NewAuditLog(fs, stateDir, nil, clk)

	err := audit.Append("test\ncategory",
		Field{Key: "key", Value: "value with\nnewline"},
		Field{Key: "empty"},
	)
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, audit.Path())
	require.NoError(t, err)
	contents := string(data)

	assert.Equal(t, `[2030-01-01 22:00:05] category="test category" key="value with newline" empty=""`+"\n", contents)
}

func TestAuditLog_Appends(t *testing.T) {
	fs := afero.NewMemMapFs()
	clk := clock.NewMock()
	audit := NewAuditLog(fs, stateDir, nil, clk)

	require.NoError(t, audit.Append("daemon_start", F("pid", 42)))
	clk.Add(time.Minute)
	require.NoError(t, audit.Append("warning", F("outcome", "snooze"), F("minutes", 5)))

	data, err := afero.ReadFile(fs, audit.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")

	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `category="daemon_start" pid="42"`)
	assert.Contains(t, lines[1], `category="warning" outcome="snooze" minutes="5"`)
}

func TestAuditLog_NoDirectory(t *testing.T) {
	audit := NewAuditLog(afero.NewMemMapFs(), "", nil, clock.NewMock())

	assert.Error(t, audit.Append("daemon_start"))
}

func TestSingleLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"a\r\nb", "a  b"},
		{"  padded\t", "padded"},
		{"bell\x07", "bell"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SingleLine(tt.in))
	}
}
