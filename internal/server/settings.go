package server

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/NLarchive/circuit-sensei-sub001/internal/config"
	"github.com/NLarchive/circuit-sensei-sub001/internal/taskqueue"
)

const (
	DefaultHost               = "127.0.0.1"
	DefaultPort               = 8766
	DefaultMaxBodyBytes int64 = 1 << 20
)

// Environment overrides, applied after the project config.
const (
	envEnabled = "SENSEI_SERVER_ENABLED"
	envHost    = "SENSEI_SERVER_HOST"
	envPort    = "SENSEI_SERVER_PORT"
)

// Priorities are the scheduler bands the server submits work at. Level
// requests run at User, events and prefetch at Background.
type Priorities struct {
	User       int
	Normal     int
	Background int
}

// DefaultPriorities mirrors the scheduler's conventional bands.
var DefaultPriorities = Priorities{
	User:       taskqueue.PriorityUser,
	Normal:     taskqueue.PriorityNormal,
	Background: taskqueue.PriorityBackground,
}

// Timeouts bound the HTTP connection phases.
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
	Idle  time.Duration
}

// DefaultTimeouts is used for any zero field.
var DefaultTimeouts = Timeouts{Read: 15 * time.Second, Write: 15 * time.Second, Idle: 60 * time.Second}

// Settings configures the content server. Zero fields take the defaults
// above when the server is built.
type Settings struct {
	Enabled      bool
	Host         string
	Port         int
	MaxBodyBytes int64
	Timeouts     Timeouts
	Priorities   Priorities
}

// SettingsFromConfig reads the server and queue sections of the project
// config, then the SENSEI_SERVER_* environment.
func SettingsFromConfig(cfg *config.Config) Settings {
	settings := Settings{Enabled: true, Host: DefaultHost, Port: DefaultPort}
	if cfg != nil {
		section := cfg.Project.Server
		if section.Enabled != nil {
			settings.Enabled = *section.Enabled
		}
		if host := strings.TrimSpace(section.Host); host != "" {
			settings.Host = host
		}
		if validPort(section.Port) {
			settings.Port = section.Port
		}
		if q := cfg.Project.Queue; q != (config.QueueConfig{}) {
			settings.Priorities = Priorities{User: q.User, Normal: q.Normal, Background: q.Background}
		}
	}
	if enabled, err := strconv.ParseBool(env(envEnabled)); err == nil {
		settings.Enabled = enabled
	}
	if host := env(envHost); host != "" {
		settings.Host = host
	}
	if port, err := strconv.Atoi(env(envPort)); err == nil && validPort(port) {
		settings.Port = port
	}
	return settings.withDefaults()
}

func (s Settings) withDefaults() Settings {
	if s.Host == "" {
		s.Host = DefaultHost
	}
	if s.MaxBodyBytes <= 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if s.Timeouts.Read <= 0 {
		s.Timeouts.Read = DefaultTimeouts.Read
	}
	if s.Timeouts.Write <= 0 {
		s.Timeouts.Write = DefaultTimeouts.Write
	}
	if s.Timeouts.Idle <= 0 {
		s.Timeouts.Idle = DefaultTimeouts.Idle
	}
	if s.Priorities == (Priorities{}) {
		s.Priorities = DefaultPriorities
	}
	return s
}

// Address returns the bind address. Port 0 picks a free port.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// URL returns the HTTP base URL for the configured address.
func (s Settings) URL() string {
	return "http://" + s.Address()
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func validPort(port int) bool {
	return port > 0 && port <= 65535
}
