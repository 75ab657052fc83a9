package warning

import (
	"os"

	"github.com/fgeck/rtcwaked/internal/models"
)

// EnvProvider supplies the environment the warning process needs to reach
// the user's desktop session.
type EnvProvider interface {
	Environment(session models.SessionContext) []string
}

// SessionEnv builds the environment from the recorded session, falling back
// to the daemon's own environment for fields the session leaves empty.
type SessionEnv struct {
	Home   string
	Lookup func(key string) (string, bool)
}

// NewSessionEnv creates a provider that falls back to os.LookupEnv.
func NewSessionEnv(home string) *SessionEnv {
	return &SessionEnv{Home: home, Lookup: os.LookupEnv}
}

// Environment returns KEY=VALUE pairs in a stable order. Empty values are
// omitted.
func (e *SessionEnv) Environment(session models.SessionContext) []string {
	pairs := []struct {
		key   string
		value string
	}{
		{"DISPLAY", session.Display},
		{"XDG_RUNTIME_DIR", session.XDGRuntimeDir},
		{"DBUS_SESSION_BUS_ADDRESS", session.DBusAddress},
		{"XAUTHORITY", session.XAuthority},
		{"WAYLAND_DISPLAY", session.WaylandDisplay},
	}

	env := make([]string, 0, len(pairs)+1)
	for _, p := range pairs {
		value := p.value
		if value == "" && e.Lookup != nil {
			value, _ = e.Lookup(p.key)
		}
		if value != "" {
			env = append(env, p.key+"="+value)
		}
	}
	if e.Home != "" {
		env = append(env, "HOME="+e.Home)
	}
	return env
}
