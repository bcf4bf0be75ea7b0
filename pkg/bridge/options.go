package bridge

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	envPrefix          = "LNDKIT"
	DefaultCallTimeout = 30 * time.Second
)

// Options configures a Bridge.
type Options struct {
	// CallTimeout bounds how long a unary call waits for its callback.
	// Zero disables the deadline; the caller's context still applies.
	CallTimeout time.Duration `envconfig:"CALL_TIMEOUT" default:"30s"`

	// LogLevel sets the minimum level of the stderr text handler built when
	// Logger is nil: debug, info, warn or error.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	Logger   *slog.Logger `ignored:"true"`
	Registry *Registry    `ignored:"true"`
	Taps     []FrameTap   `ignored:"true"`
}

// DefaultOptions returns the options used when New is given nil.
func DefaultOptions() *Options {
	return &Options{CallTimeout: DefaultCallTimeout, LogLevel: "info"}
}

// LoadOptions reads options from LNDKIT_* environment variables.
func LoadOptions() (*Options, error) {
	var o Options
	if err := envconfig.Process(envPrefix, &o); err != nil {
		return nil, fmt.Errorf("bridge: load options: %w", err)
	}
	if o.CallTimeout < 0 {
		return nil, fmt.Errorf("bridge: load options: %s_CALL_TIMEOUT must not be negative", envPrefix)
	}
	return &o, nil
}

func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	if o.LogLevel == "" {
		return slog.Default()
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(o.LogLevel)}))
}

func (o *Options) registry() *Registry {
	if o.Registry != nil {
		return o.Registry
	}
	return GlobalRegistry()
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
