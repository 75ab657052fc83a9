package rtcwake

import (
	"strings"

	"github.com/fgeck/rtcwaked/internal/models"
	"github.com/spf13/afero"
)

// PowerStatePath is the kernel file listing supported sleep states.
const PowerStatePath = "/sys/power/state"

// DetectPowerStates reports which actions the running kernel supports.
// ActionNone and ActionPowerOff are always available.
func DetectPowerStates(fs afero.Fs) []models.PowerStateOption {
	tokens := map[string]bool{}
	if data, err := afero.ReadFile(fs, PowerStatePath); err == nil {
		for _, tok := range strings.Fields(string(data)) {
			tokens[tok] = true
		}
	}

	options := make([]models.PowerStateOption, 0, len(models.AllActions))
	for _, action := range models.AllActions {
		available := true
		if action.Resumes() {
			available = tokens[action.Mode()]
		}
		options = append(options, models.PowerStateOption{Action: action, Available: available})
	}
	return options
}

// Supported reports whether action is available according to options.
func Supported(options []models.PowerStateOption, action models.PowerAction) bool {
	for _, opt := range options {
		if opt.Action == action {
			return opt.Available
		}
	}
	return false
}
