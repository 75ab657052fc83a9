// Package config provides daemon option parsing and the schedule document store.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fgeck/rtcwaked/internal/models"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Default daemon option values.
const (
	DefaultRTCWakePath      = "rtcwake"
	DefaultPowerCommand     = "systemctl"
	DefaultRunuserPath      = "runuser"
	DefaultPeriodicInterval = 5 * time.Minute
	DefaultDebounce         = 500 * time.Millisecond
	StateDirName            = ".local/share/rtcwake-gui"
)

// Parser handles daemon option parsing.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new option parser with defaults applied.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetDefault("rtcwake_path", DefaultRTCWakePath)
	v.SetDefault("power_command", DefaultPowerCommand)
	v.SetDefault("runuser_path", DefaultRunuserPath)
	v.SetDefault("periodic_interval", DefaultPeriodicInterval)
	v.SetDefault("debounce", DefaultDebounce)
	v.SetDefault("command_timeout", time.Duration(0))
	return &Parser{v: v}
}

// BindFlags lets command line flags override values from the options file.
// Flags that are not present in the set are ignored.
func (p *Parser) BindFlags(flags *pflag.FlagSet) error {
	bindings := map[string]string{
		"schedule_file": "schedule",
		"target_user":   "user",
		"target_home":   "home",
		"warning_app":   "warning-app",
		"rtcwake_path":  "rtcwake",
	}
	for key, name := range bindings {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := p.v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads the options file at path, if any, and parses the result.
func (p *Parser) Load(path string) (*models.DaemonOptions, error) {
	if path == "" {
		return p.parse()
	}
	return p.LoadFile(path)
}

// LoadFile loads options from a file path.
func (p *Parser) LoadFile(path string) (*models.DaemonOptions, error) {
	p.v.SetConfigFile(path)

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return p.parse()
}

// LoadReader loads options from a string (useful for testing).
func (p *Parser) LoadReader(content string) (*models.DaemonOptions, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return p.parse()
}

type companionOptions struct {
	Name         string           `mapstructure:"name"`
	MACAddress   string           `mapstructure:"mac_address"`
	BroadcastIP  string           `mapstructure:"broadcast_ip"`
	PollURL      string           `mapstructure:"poll_url"`
	Timeout      time.Duration    `mapstructure:"timeout"`
	PollInterval time.Duration    `mapstructure:"poll_interval"`
	Shutdown     *shutdownOptions `mapstructure:"shutdown"`
}

type shutdownOptions struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Username      string `mapstructure:"username"`
	KeyPath       string `mapstructure:"key_path"`
	ShutdownDelay int    `mapstructure:"shutdown_delay"`
	OS            string `mapstructure:"os"`
}

//nolint:gocognit,gocyclo // parsing config requires checking many fields
func (p *Parser) parse() (*models.DaemonOptions, error) {
	opts := &models.DaemonOptions{
		ScheduleFile:     p.expandEnv(p.v.GetString("schedule_file")),
		TargetUser:       p.v.GetString("target_user"),
		TargetHome:       p.expandEnv(p.v.GetString("target_home")),
		WarningApp:       p.expandEnv(p.v.GetString("warning_app")),
		RTCWakePath:      p.v.GetString("rtcwake_path"),
		PowerCommand:     p.v.GetString("power_command"),
		RunuserPath:      p.v.GetString("runuser_path"),
		StateDir:         p.expandEnv(p.v.GetString("state_dir")),
		PeriodicInterval: p.v.GetDuration("periodic_interval"),
		Debounce:         p.v.GetDuration("debounce"),
		CommandTimeout:   p.v.GetDuration("command_timeout"),
	}

	if opts.StateDir == "" && opts.TargetHome != "" {
		opts.StateDir = filepath.Join(opts.TargetHome, StateDirName)
	}
	if opts.PeriodicInterval <= 0 {
		opts.PeriodicInterval = DefaultPeriodicInterval
	}
	if opts.Debounce < 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.CommandTimeout < 0 {
		return nil, fmt.Errorf("command_timeout must not be negative")
	}

	// Parse optional companion hosts.
	var companions []companionOptions
	if err := p.v.UnmarshalKey("companions", &companions); err != nil {
		return nil, fmt.Errorf("parsing companions: %w", err)
	}
	for i, c := range companions {
		companion, err := p.parseCompanion(i, c)
		if err != nil {
			return nil, err
		}
		opts.Companions = append(opts.Companions, companion)
	}

	// Parse optional Telegram config.
	if p.v.IsSet("telegram") {
		opts.Telegram = &models.TelegramConfig{
			BotToken: p.expandEnv(p.v.GetString("telegram.bot_token")),
			ChatID:   p.expandEnv(p.v.GetString("telegram.chat_id")),
		}

		if opts.Telegram.BotToken == "" {
			return nil, fmt.Errorf("telegram.bot_token is required when telegram is configured")
		}
		if opts.Telegram.ChatID == "" {
			return nil, fmt.Errorf("telegram.chat_id is required when telegram is configured")
		}
	}

	return opts, nil
}

//nolint:nestif // config parsing with defaults
func (p *Parser) parseCompanion(i int, c companionOptions) (models.CompanionConfig, error) {
	name := c.Name
	if name == "" {
		name = fmt.Sprintf("companion-%d", i)
	}
	companion := models.CompanionConfig{Name: name}

	if c.MACAddress != "" {
		companion.WOL = &models.WOLConfig{
			MACAddress:   c.MACAddress,
			BroadcastIP:  c.BroadcastIP,
			PollURL:      c.PollURL,
			Timeout:      c.Timeout,
			PollInterval: c.PollInterval,
		}
		if companion.WOL.BroadcastIP == "" {
			companion.WOL.BroadcastIP = "255.255.255.255"
		}
		if companion.WOL.Timeout == 0 {
			companion.WOL.Timeout = 2 * time.Minute
		}
		if companion.WOL.PollInterval == 0 {
			companion.WOL.PollInterval = 5 * time.Second
		}
	}

	if c.Shutdown != nil {
		sd := &models.SSHShutdownConfig{
			Host:          c.Shutdown.Host,
			Port:          c.Shutdown.Port,
			Username:      c.Shutdown.Username,
			KeyPath:       p.expandEnv(c.Shutdown.KeyPath),
			ShutdownDelay: c.Shutdown.ShutdownDelay,
			OS:            c.Shutdown.OS,
		}
		if sd.Host == "" {
			return companion, fmt.Errorf("companions[%s].shutdown.host is required", name)
		}
		if sd.KeyPath == "" {
			return companion, fmt.Errorf("companions[%s].shutdown.key_path is required", name)
		}
		if sd.Port == 0 {
			sd.Port = 22
		}
		if sd.Username == "" {
			sd.Username = "root"
		}
		if sd.OS == "" {
			sd.OS = "linux"
		}
		validOS := map[string]bool{"linux": true, "windows": true}
		if !validOS[sd.OS] {
			return companion, fmt.Errorf("companions[%s].shutdown.os must be one of: linux, windows", name)
		}
		companion.Shutdown = sd
	}

	if companion.WOL == nil && companion.Shutdown == nil {
		return companion, fmt.Errorf("companions[%s] needs a mac_address or a shutdown block", name)
	}
	return companion, nil
}

// expandEnv expands environment variables in the format ${VAR} or $VAR.
func (p *Parser) expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate performs validation on the loaded options.
func Validate(opts *models.DaemonOptions) error {
	if opts == nil {
		return fmt.Errorf("configuration is nil")
	}

	if opts.ScheduleFile == "" {
		return fmt.Errorf("schedule_file is required")
	}

	if opts.TargetUser == "" {
		return fmt.Errorf("target_user is required")
	}

	if opts.TargetHome == "" {
		return fmt.Errorf("target_home is required")
	}

	if opts.RTCWakePath == "" {
		return fmt.Errorf("rtcwake_path must not be empty")
	}

	return nil
}
