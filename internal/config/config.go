// Package config loads and validates the runtime configuration.
//
// Values are resolved in order: built-in defaults, an optional .env file,
// WAVE_* environment variables, then command-line flags that were set
// explicitly. Later sources win.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/ayusman/wave/internal/emitter"
	"github.com/ayusman/wave/internal/gesture"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "WAVE_"

// Frame sources.
const (
	SourceCamera = "camera"
	SourceReplay = "replay"
)

// DefaultThreshold is the largest nearest-exemplar distance that is still
// accepted as a known gesture.
const DefaultThreshold = 0.5

// Config holds every setting of a run. It is fixed once Load returns.
type Config struct {
	ModelPath string `validate:"required"`
	DataDir   string `validate:"required"`

	Threshold float64       `validate:"gt=0"`
	Cooldown  time.Duration `validate:"gte=0"`
	Policy    string        `validate:"oneof=cooldown label-change"`
	Neighbors int           `validate:"gte=1"`
	// Labels optionally overrides the label names stored in the model,
	// written as "0:open_hand,1:fist,2:thumbs_up".
	Labels string

	OutboundAddr string `validate:"omitempty,hostname_port"`
	DeliveryMode string `validate:"oneof=required best-effort"`

	Source          string  `validate:"oneof=camera replay"`
	ReplayPath      string  `validate:"required_if=Source replay"`
	CameraID        int     `validate:"gte=0"`
	FPS             int     `validate:"gte=1,lte=60"`
	MaxHands        int     `validate:"gte=1,lte=4"`
	MotionThreshold float64 `validate:"gte=0,lte=100"`
	Headless        bool

	HTTPAddr     string `validate:"omitempty,hostname_port"`
	RedisAddr    string `validate:"omitempty,hostname_port"`
	RedisChannel string
	PluginDir    string

	LogLevel string `validate:"oneof=trace debug info warn warning error"`
	LogFile  string
}

// Default returns the built-in configuration rooted at ~/.wave.
func Default() Config {
	dataDir := ".wave"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".wave")
	}
	return Config{
		DataDir:      dataDir,
		Threshold:    DefaultThreshold,
		Cooldown:     gesture.DefaultCooldown,
		Policy:       string(gesture.PolicyCooldown),
		Neighbors:    1,
		DeliveryMode: string(emitter.ModeRequired),
		Source:       SourceCamera,
		FPS:          15,
		MaxHands:     2,
		Headless:     true,
		RedisChannel: emitter.DefaultRedisChannel,
		LogLevel:     "info",
	}
}

// Validate checks field constraints and the label override.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.LabelOverride(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LabelOverride parses Labels. It returns nil when no override is set.
func (c Config) LabelOverride() (gesture.LabelMap, error) {
	if strings.TrimSpace(c.Labels) == "" {
		return nil, nil
	}
	return gesture.ParseLabelMap(c.Labels)
}

// JournalPath is the SQLite database holding events and bindings.
func (c Config) JournalPath() string {
	return filepath.Join(c.DataDir, "wave.db")
}

// DebouncePolicy returns the parsed debounce policy.
func (c Config) DebouncePolicy() gesture.Policy {
	p, _ := gesture.ParsePolicy(c.Policy)
	return p
}

// Delivery returns the parsed outbound delivery mode.
func (c Config) Delivery() emitter.DeliveryMode {
	m, _ := emitter.ParseDeliveryMode(c.DeliveryMode)
	return m
}

// Options controls where Load looks for overrides.
type Options struct {
	// EnvFile is read when it exists. Empty means ".env".
	EnvFile string
	// Flags holds flags registered by RegisterFlags. Only flags the user
	// changed are applied.
	Flags *pflag.FlagSet
}

// Load resolves and validates the configuration.
func Load(opts Options) (Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := Default()

	for _, s := range settings {
		v, ok := os.LookupEnv(EnvPrefix + s.env)
		if !ok {
			continue
		}
		if err := s.set(&cfg, v); err != nil {
			return Config{}, fmt.Errorf("%s%s: %w", EnvPrefix, s.env, err)
		}
	}

	if opts.Flags != nil {
		var flagErr error
		opts.Flags.Visit(func(f *pflag.Flag) {
			s, ok := settingByFlag(f.Name)
			if !ok || flagErr != nil {
				return
			}
			if err := s.set(&cfg, f.Value.String()); err != nil {
				flagErr = fmt.Errorf("--%s: %w", f.Name, err)
			}
		})
		if flagErr != nil {
			return Config{}, flagErr
		}
	}

	if cfg.ModelPath == "" {
		cfg.ModelPath = filepath.Join(cfg.DataDir, "model.db")
	}
	if cfg.PluginDir == "" {
		cfg.PluginDir = filepath.Join(cfg.DataDir, "plugins")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RegisterFlags adds one flag per setting to fs, with defaults taken from
// Default.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("model", d.ModelPath, "model artifact (default <data-dir>/model.db)")
	fs.String("data-dir", d.DataDir, "directory for the journal database and plugins")
	fs.Float64("threshold", d.Threshold, "largest accepted nearest-exemplar distance")
	fs.Duration("cooldown", d.Cooldown, "minimum time between two events of one hand")
	fs.String("policy", d.Policy, "debounce policy: cooldown or label-change")
	fs.Int("neighbors", d.Neighbors, "neighbours consulted per classification")
	fs.String("labels", d.Labels, `label override, e.g. "0:open_hand,1:fist,2:thumbs_up"`)
	fs.String("outbound", d.OutboundAddr, "TCP consumer address, e.g. 127.0.0.1:5050")
	fs.String("delivery", d.DeliveryMode, "outbound delivery mode: required or best-effort")
	fs.String("source", d.Source, "frame source: camera or replay")
	fs.String("replay", d.ReplayPath, `replay file of recorded observations ("-" for stdin)`)
	fs.Int("camera", d.CameraID, "camera device id")
	fs.Int("fps", d.FPS, "camera frame rate")
	fs.Int("max-hands", d.MaxHands, "maximum hands tracked per frame")
	fs.Float64("motion-threshold", d.MotionThreshold, "percent of changed pixels that wakes detection (0 disables)")
	fs.Bool("headless", d.Headless, "disable per-frame debug tracing")
	fs.String("http", d.HTTPAddr, "status API listen address, e.g. 127.0.0.1:8080")
	fs.String("redis", d.RedisAddr, "Redis address for the event feed")
	fs.String("redis-channel", d.RedisChannel, "Redis channel for the event feed")
	fs.String("plugin-dir", d.PluginDir, "plugin directory (default <data-dir>/plugins)")
	fs.String("log-level", d.LogLevel, "log level")
	fs.String("log-file", d.LogFile, "rotating log file")
}

type setting struct {
	flag string
	env  string
	set  func(c *Config, v string) error
}

var settings = []setting{
	{"model", "MODEL", str(func(c *Config) *string { return &c.ModelPath })},
	{"data-dir", "DATA_DIR", str(func(c *Config) *string { return &c.DataDir })},
	{"threshold", "THRESHOLD", float(func(c *Config) *float64 { return &c.Threshold })},
	{"cooldown", "COOLDOWN", duration(func(c *Config) *time.Duration { return &c.Cooldown })},
	{"policy", "POLICY", str(func(c *Config) *string { return &c.Policy })},
	{"neighbors", "NEIGHBORS", integer(func(c *Config) *int { return &c.Neighbors })},
	{"labels", "LABELS", str(func(c *Config) *string { return &c.Labels })},
	{"outbound", "OUTBOUND_ADDR", str(func(c *Config) *string { return &c.OutboundAddr })},
	{"delivery", "DELIVERY", str(func(c *Config) *string { return &c.DeliveryMode })},
	{"source", "SOURCE", str(func(c *Config) *string { return &c.Source })},
	{"replay", "REPLAY", str(func(c *Config) *string { return &c.ReplayPath })},
	{"camera", "CAMERA", integer(func(c *Config) *int { return &c.CameraID })},
	{"fps", "FPS", integer(func(c *Config) *int { return &c.FPS })},
	{"max-hands", "MAX_HANDS", integer(func(c *Config) *int { return &c.MaxHands })},
	{"motion-threshold", "MOTION_THRESHOLD", float(func(c *Config) *float64 { return &c.MotionThreshold })},
	{"headless", "HEADLESS", boolean(func(c *Config) *bool { return &c.Headless })},
	{"http", "HTTP_ADDR", str(func(c *Config) *string { return &c.HTTPAddr })},
	{"redis", "REDIS_ADDR", str(func(c *Config) *string { return &c.RedisAddr })},
	{"redis-channel", "REDIS_CHANNEL", str(func(c *Config) *string { return &c.RedisChannel })},
	{"plugin-dir", "PLUGIN_DIR", str(func(c *Config) *string { return &c.PluginDir })},
	{"log-level", "LOG_LEVEL", str(func(c *Config) *string { return &c.LogLevel })},
	{"log-file", "LOG_FILE", str(func(c *Config) *string { return &c.LogFile })},
}

func settingByFlag(name string) (setting, bool) {
	for _, s := range settings {
		if s.flag == name {
			return s, true
		}
	}
	return setting{}, false
}

func str(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = strings.TrimSpace(v)
		return nil
	}
}

func integer(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func float(field func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return err
		}
		*field(c) = f
		return nil
	}
}

func boolean(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

// duration accepts Go durations ("750ms") and bare seconds ("0.75").
func duration(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		v = strings.TrimSpace(v)
		if d, err := time.ParseDuration(v); err == nil {
			*field(c) = d
			return nil
		}
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid duration %q", v)
		}
		*field(c) = time.Duration(secs * float64(time.Second))
		return nil
	}
}
