// Package config loads gulpwatch settings from a TOML file and the
// environment and turns them into the runtime configs of each component.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ayusman/gulpwatch/internal/detector"
	"github.com/ayusman/gulpwatch/internal/gesture"
)

const (
	DefaultGoalML         = 3000
	DefaultMLPerGulp      = 100
	DefaultIntervalMS     = 300
	DefaultIdleFPS        = 5
	DefaultActiveFPS      = 15
	DefaultMotionThresh   = 1.0
	DefaultIdleTimeoutMS  = 2000
	DefaultServerAddr     = "127.0.0.1:8080"
	DefaultPluginTimeout  = 5000
	DefaultLogLevel       = "info"
	DefaultReminderMin    = 30
	envPrefix             = "GULPWATCH_"
	defaultDirName        = ".gulpwatch"
	defaultConfigFileName = "config.toml"

	// maxSeconds bounds every setting given in seconds.
	maxSeconds = 24 * 60 * 60
	maxMinutes = 24 * 60
)

// ErrInvalid is wrapped by every validation failure outside the detection
// engine, which uses gesture.ErrInvalidConfig.
var ErrInvalid = errors.New("invalid config")

// Config holds the application configuration.
type Config struct {
	DataDir    string
	ConfigPath string
	DBPath     string
	PluginDir  string
	StaticDir  string

	GoalML    int
	MLPerGulp int
	// ReminderIntervalMinutes is how long without a drink before plugins
	// get a reminder. Zero disables reminders.
	ReminderIntervalMinutes int

	CameraIndex     int
	IntervalMS      int
	IdleFPS         int
	ActiveFPS       int
	MotionThreshold float64
	IdleTimeoutMS   int

	// Detection engine settings, in config units.
	Sensitivity        string
	DrinkingHand       string
	ProximityThreshold float64
	FramesToConfirm    int
	CooldownSeconds    float64
	BottleCacheSeconds float64
	RequireContainer   bool
	ScoreThreshold     float64
	ContainerLabels    []string
	CacheHandTolerance float64
	AwayTimeoutSeconds float64
	MaxFrameGapSeconds float64

	Perception   detector.Config
	MockDetector bool

	ServerAddr      string
	PluginTimeoutMS int
	SoundEnabled    bool

	LogLevel string
	LogFile  string
}

type fileConfig struct {
	Goal struct {
		GoalML           *int `toml:"goal_ml"`
		MLPerGulp        *int `toml:"ml_per_gulp"`
		ReminderInterval *int `toml:"reminder_interval_minutes"`
	} `toml:"goal"`
	Capture struct {
		CameraIndex     *int     `toml:"camera_index"`
		IntervalMS      *int     `toml:"interval_ms"`
		IdleFPS         *int     `toml:"idle_fps"`
		ActiveFPS       *int     `toml:"active_fps"`
		MotionThreshold *float64 `toml:"motion_threshold"`
		IdleTimeoutMS   *int     `toml:"idle_timeout_ms"`
	} `toml:"capture"`
	Detection struct {
		Sensitivity        *string  `toml:"detection_sensitivity"`
		DrinkingHand       *string  `toml:"drinking_hand"`
		ProximityThreshold *float64 `toml:"proximity_threshold"`
		FramesToConfirm    *int     `toml:"frames_to_confirm"`
		CooldownSeconds    *float64 `toml:"cooldown_seconds"`
		BottleCacheSeconds *float64 `toml:"bottle_cache_seconds"`
		RequireContainer   *bool    `toml:"require_container"`
		ScoreThreshold     *float64 `toml:"score_threshold"`
		ContainerLabels    []string `toml:"container_labels"`
		CacheHandTolerance *float64 `toml:"cache_hand_tolerance"`
		AwayTimeoutSeconds *float64 `toml:"away_timeout_seconds"`
		MaxFrameGapSeconds *float64 `toml:"max_frame_gap_seconds"`
	} `toml:"detection"`
	Perception struct {
		Mock              *bool    `toml:"mock"`
		MaxHands          *int     `toml:"max_hands"`
		MinHandConfidence *float64 `toml:"min_hand_confidence"`
		MinFaceConfidence *float64 `toml:"min_face_confidence"`
		ObjectScore       *float64 `toml:"object_score_threshold"`
		MaxObjects        *int     `toml:"max_objects"`
	} `toml:"perception"`
	Server struct {
		Addr      *string `toml:"addr"`
		StaticDir *string `toml:"static_dir"`
	} `toml:"server"`
	Plugins struct {
		Dir          *string `toml:"dir"`
		TimeoutMS    *int    `toml:"timeout_ms"`
		SoundEnabled *bool   `toml:"sound_enabled"`
	} `toml:"plugins"`
	Storage struct {
		DBPath *string `toml:"db_path"`
	} `toml:"storage"`
	Logging struct {
		Level *string `toml:"level"`
		File  *string `toml:"file"`
	} `toml:"logging"`
}

// DefaultDir returns ~/.gulpwatch, or .gulpwatch when the home directory is
// unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDirName
	}
	return filepath.Join(home, defaultDirName)
}

// Default returns the built-in configuration rooted at dataDir.
func Default(dataDir string) *Config {
	engine := gesture.DefaultConfig()
	return &Config{
		DataDir:    dataDir,
		ConfigPath: filepath.Join(dataDir, defaultConfigFileName),
		DBPath:     filepath.Join(dataDir, "gulpwatch.db"),
		PluginDir:  filepath.Join(dataDir, "plugins"),

		GoalML:                  DefaultGoalML,
		MLPerGulp:               DefaultMLPerGulp,
		ReminderIntervalMinutes: DefaultReminderMin,

		IntervalMS:      DefaultIntervalMS,
		IdleFPS:         DefaultIdleFPS,
		ActiveFPS:       DefaultActiveFPS,
		MotionThreshold: DefaultMotionThresh,
		IdleTimeoutMS:   DefaultIdleTimeoutMS,

		Sensitivity:        string(engine.Sensitivity),
		DrinkingHand:       string(engine.DrinkingHand),
		ProximityThreshold: engine.Features.ProximityThreshold,
		FramesToConfirm:    engine.FramesToConfirm,
		CooldownSeconds:    engine.Cooldown.Seconds(),
		BottleCacheSeconds: engine.CacheTTL.Seconds(),
		RequireContainer:   engine.RequireContainer,
		ScoreThreshold:     engine.ScoreThreshold,
		ContainerLabels:    append([]string(nil), engine.ContainerLabels...),
		CacheHandTolerance: engine.CacheHandTolerance,
		AwayTimeoutSeconds: engine.AwayTimeout.Seconds(),
		MaxFrameGapSeconds: engine.MaxFrameGap.Seconds(),

		Perception: detector.DefaultConfig(),

		ServerAddr:      DefaultServerAddr,
		PluginTimeoutMS: DefaultPluginTimeout,
		SoundEnabled:    true,

		LogLevel: DefaultLogLevel,
		LogFile:  filepath.Join(dataDir, "logs", "gulpwatch.log"),
	}
}

// Load reads path (or <DefaultDir>/config.toml when path is empty), applies
// GULPWATCH_* environment overrides and validates the result. A missing
// default file is fine; a missing explicit file is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	cfg := Default(DefaultDir())
	if dir := os.Getenv(envPrefix + "DATA_DIR"); dir != "" {
		cfg = Default(dir)
	}
	if explicit {
		cfg.ConfigPath = path
	}

	data, err := os.ReadFile(cfg.ConfigPath)
	switch {
	case err == nil:
		if err := cfg.apply(data); err != nil {
			return nil, fmt.Errorf("parse %s: %w", cfg.ConfigPath, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// apply overlays the TOML document data onto c.
func (c *Config) apply(data []byte) error {
	var f fileConfig
	if err := toml.Unmarshal(data, &f); err != nil {
		return err
	}

	setInt(&c.GoalML, f.Goal.GoalML)
	setInt(&c.MLPerGulp, f.Goal.MLPerGulp)
	setInt(&c.ReminderIntervalMinutes, f.Goal.ReminderInterval)

	setInt(&c.CameraIndex, f.Capture.CameraIndex)
	setInt(&c.IntervalMS, f.Capture.IntervalMS)
	setInt(&c.IdleFPS, f.Capture.IdleFPS)
	setInt(&c.ActiveFPS, f.Capture.ActiveFPS)
	setFloat(&c.MotionThreshold, f.Capture.MotionThreshold)
	setInt(&c.IdleTimeoutMS, f.Capture.IdleTimeoutMS)

	d := f.Detection
	setString(&c.Sensitivity, d.Sensitivity)
	setString(&c.DrinkingHand, d.DrinkingHand)
	setFloat(&c.ProximityThreshold, d.ProximityThreshold)
	setInt(&c.FramesToConfirm, d.FramesToConfirm)
	setFloat(&c.CooldownSeconds, d.CooldownSeconds)
	setFloat(&c.BottleCacheSeconds, d.BottleCacheSeconds)
	setBool(&c.RequireContainer, d.RequireContainer)
	setFloat(&c.ScoreThreshold, d.ScoreThreshold)
	if d.ContainerLabels != nil {
		c.ContainerLabels = d.ContainerLabels
	}
	setFloat(&c.CacheHandTolerance, d.CacheHandTolerance)
	setFloat(&c.AwayTimeoutSeconds, d.AwayTimeoutSeconds)
	setFloat(&c.MaxFrameGapSeconds, d.MaxFrameGapSeconds)

	p := f.Perception
	setBool(&c.MockDetector, p.Mock)
	setInt(&c.Perception.MaxHands, p.MaxHands)
	setFloat(&c.Perception.MinHandConfidence, p.MinHandConfidence)
	setFloat(&c.Perception.MinFaceConfidence, p.MinFaceConfidence)
	setFloat(&c.Perception.ObjectScoreThreshold, p.ObjectScore)
	setInt(&c.Perception.MaxObjects, p.MaxObjects)

	setString(&c.ServerAddr, f.Server.Addr)
	setString(&c.StaticDir, f.Server.StaticDir)
	setString(&c.PluginDir, f.Plugins.Dir)
	setInt(&c.PluginTimeoutMS, f.Plugins.TimeoutMS)
	setBool(&c.SoundEnabled, f.Plugins.SoundEnabled)
	setString(&c.DBPath, f.Storage.DBPath)
	setString(&c.LogLevel, f.Logging.Level)
	setString(&c.LogFile, f.Logging.File)

	return nil
}

// applyEnv applies GULPWATCH_* overrides. Unparsable values are errors.
func (c *Config) applyEnv(getenv func(string) string) error {
	var errs []error
	str := func(name string, dst *string) {
		if v := getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := getenv(envPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s%s=%q is not an integer", ErrInvalid, envPrefix, name, v))
				return
			}
			*dst = n
		}
	}
	flt := func(name string, dst *float64) {
		if v := getenv(envPrefix + name); v != "" {
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s%s=%q is not a number", ErrInvalid, envPrefix, name, v))
				return
			}
			*dst = n
		}
	}
	boolean := func(name string, dst *bool) {
		if v := getenv(envPrefix + name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s%s=%q is not a boolean", ErrInvalid, envPrefix, name, v))
				return
			}
			*dst = b
		}
	}

	str("DB_PATH", &c.DBPath)
	str("PLUGIN_DIR", &c.PluginDir)
	str("STATIC_DIR", &c.StaticDir)
	str("SERVER_ADDR", &c.ServerAddr)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FILE", &c.LogFile)
	str("SENSITIVITY", &c.Sensitivity)
	str("DRINKING_HAND", &c.DrinkingHand)
	num("CAMERA_INDEX", &c.CameraIndex)
	num("GOAL_ML", &c.GoalML)
	num("ML_PER_GULP", &c.MLPerGulp)
	num("REMINDER_INTERVAL_MINUTES", &c.ReminderIntervalMinutes)
	num("FRAMES_TO_CONFIRM", &c.FramesToConfirm)
	num("INTERVAL_MS", &c.IntervalMS)
	flt("PROXIMITY_THRESHOLD", &c.ProximityThreshold)
	flt("COOLDOWN_SECONDS", &c.CooldownSeconds)
	flt("BOTTLE_CACHE_SECONDS", &c.BottleCacheSeconds)
	flt("SCORE_THRESHOLD", &c.ScoreThreshold)
	flt("OBJECT_SCORE_THRESHOLD", &c.Perception.ObjectScoreThreshold)
	boolean("REQUIRE_CONTAINER", &c.RequireContainer)
	boolean("MOCK_DETECTOR", &c.MockDetector)
	boolean("SOUND_ENABLED", &c.SoundEnabled)
	if v := getenv(envPrefix + "CONTAINER_LABELS"); v != "" {
		c.ContainerLabels = splitList(v)
	}

	return errors.Join(errs...)
}

// Engine returns the detection engine configuration.
func (c *Config) Engine() gesture.Config {
	e := gesture.DefaultConfig()
	e.Sensitivity = gesture.Sensitivity(strings.ToLower(strings.TrimSpace(c.Sensitivity)))
	e.DrinkingHand = gesture.Hand(strings.ToLower(strings.TrimSpace(c.DrinkingHand)))
	e.Features.ProximityThreshold = c.ProximityThreshold
	e.FramesToConfirm = c.FramesToConfirm
	e.Cooldown = seconds(c.CooldownSeconds)
	e.RequireContainer = c.RequireContainer
	e.ContainerLabels = c.ContainerLabels
	e.ScoreThreshold = c.ScoreThreshold
	e.CacheTTL = seconds(c.BottleCacheSeconds)
	e.CacheHandTolerance = c.CacheHandTolerance
	e.AwayTimeout = seconds(c.AwayTimeoutSeconds)
	e.MaxFrameGap = seconds(c.MaxFrameGapSeconds)
	return e
}

// Detector returns the perception configuration.
func (c *Config) Detector() detector.Config {
	return c.Perception
}

// Interval returns the detection interval.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// ReminderInterval returns the reminder interval, zero when disabled.
func (c *Config) ReminderInterval() time.Duration {
	return time.Duration(c.ReminderIntervalMinutes) * time.Minute
}

// Validate reports every problem in c. Nothing is clamped.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	durations := []struct {
		name string
		v    float64
	}{
		{"cooldown_seconds", c.CooldownSeconds},
		{"bottle_cache_seconds", c.BottleCacheSeconds},
		{"away_timeout_seconds", c.AwayTimeoutSeconds},
		{"max_frame_gap_seconds", c.MaxFrameGapSeconds},
	}
	durationsOK := true
	for _, d := range durations {
		if math.IsNaN(d.v) || math.IsInf(d.v, 0) || math.Abs(d.v) > maxSeconds {
			bad("%s must be a finite number of seconds up to %d, got %v", d.name, maxSeconds, d.v)
			durationsOK = false
		}
	}
	// Engine converts to time.Duration, which is undefined for the values above.
	if durationsOK {
		if err := c.Engine().Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.GoalML <= 0 {
		bad("goal_ml must be > 0, got %d", c.GoalML)
	}
	if c.MLPerGulp <= 0 {
		bad("ml_per_gulp must be > 0, got %d", c.MLPerGulp)
	}
	if c.ReminderIntervalMinutes < 0 || c.ReminderIntervalMinutes > maxMinutes {
		bad("goal.reminder_interval_minutes must be within [0,%d], got %d", maxMinutes, c.ReminderIntervalMinutes)
	}
	if c.CameraIndex < 0 {
		bad("camera_index must be >= 0, got %d", c.CameraIndex)
	}
	if c.IntervalMS <= 0 {
		bad("interval_ms must be > 0, got %d", c.IntervalMS)
	}
	if c.IdleFPS <= 0 || c.ActiveFPS <= 0 {
		bad("idle_fps and active_fps must be > 0, got %d and %d", c.IdleFPS, c.ActiveFPS)
	}
	if math.IsNaN(c.MotionThreshold) || c.MotionThreshold < 0 {
		bad("motion_threshold must be >= 0, got %v", c.MotionThreshold)
	}
	if f := c.Perception.ObjectScoreThreshold; math.IsNaN(f) || f < 0 || f > 1 {
		bad("perception.object_score_threshold must be within [0,1], got %v", f)
	} else if f > c.ScoreThreshold {
		bad("perception.object_score_threshold (%v) must not exceed score_threshold (%v); lower it as well",
			f, c.ScoreThreshold)
	}
	if c.Perception.MaxHands < 1 {
		bad("max_hands must be >= 1, got %d", c.Perception.MaxHands)
	}
	if c.PluginTimeoutMS <= 0 {
		bad("plugins.timeout_ms must be > 0, got %d", c.PluginTimeoutMS)
	}
	if strings.TrimSpace(c.ServerAddr) == "" {
		bad("server.addr is empty")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		bad("storage.db_path is empty")
	}

	return errors.Join(errs...)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
