package config

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"piedial/internal/dial"
	"piedial/internal/geom"
	"piedial/internal/model"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions.

// SourceConfig describes a single calendar source: a remote ICS
// subscription (URL) or a local .ics file (Path).
type SourceConfig struct {
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`
	// Path is a local .ics file, reloaded when it changes on disk.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// Color is the "#rrggbb" wedge color for this source's events.
	Color string `yaml:"color,omitempty" json:"color,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// DialConfig controls the rendered face. Lengths are in dp unless noted.
type DialConfig struct {
	Width          int `yaml:"width" json:"width"`
	Height         int `yaml:"height" json:"height"`
	PeekCardHeight int `yaml:"peek_card_height" json:"peek_card_height"`

	// Density converts dp into pixels.
	Density float64 `yaml:"density" json:"density"`

	MinDegreesForTitle float64 `yaml:"min_degrees_for_title" json:"min_degrees_for_title"`
	LongTitleWidth     float64 `yaml:"long_title_width" json:"long_title_width"`
	LongTitleMaxSweep  float64 `yaml:"long_title_max_sweep" json:"long_title_max_sweep"`

	// Background is the "#rrggbb" face color.
	Background string `yaml:"background" json:"background"`

	// Font sizes in pixels.
	FontSize          float64 `yaml:"font_size" json:"font_size"`
	CountdownFontSize float64 `yaml:"countdown_font_size" json:"countdown_font_size"`

	// LowBitAmbient reduces ambient frames to pure black and white.
	LowBitAmbient bool `yaml:"low_bit_ambient" json:"low_bit_ambient"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API and previews.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone the dial shows (e.g. "Asia/Seoul").
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is a cron-style schedule string (e.g. "* * * * *")
	// used for periodic source refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// WindowHours is how far ahead events are fetched. The dial shows 12
	// hours, so larger values only matter for the API.
	WindowHours int `yaml:"window_hours" json:"window_hours"`

	// ExcludeTitles drops events whose title contains any of these
	// substrings (case-sensitive).
	ExcludeTitles []string `yaml:"exclude_titles" json:"exclude_titles"`

	// DefaultColor is used for sources without a color.
	DefaultColor string `yaml:"default_color" json:"default_color"`

	// Sources is the list of calendar sources.
	Sources []SourceConfig `yaml:"sources" json:"sources"`

	Dial DialConfig `yaml:"dial" json:"dial"`

	// CacheDir holds fetched feeds for conditional requests.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// Output is where --once writes the rendered PNG.
	Output string `yaml:"output" json:"output"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen  = "127.0.0.1:8080"
	defaultRefresh = "* * * * *"
	defaultColor   = "#cd3737"
)

func defaultDial() DialConfig {
	return DialConfig{
		Width:              400,
		Height:             400,
		PeekCardHeight:     60,
		Density:            1,
		MinDegreesForTitle: 15,
		LongTitleWidth:     170,
		LongTitleMaxSweep:  60,
		Background:         "#000000",
		FontSize:           24,
		CountdownFontSize:  19,
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:        defaultListen,
		Timezone:      "Local",
		LogLevel:      "info",
		RefreshCron:   defaultRefresh,
		WindowHours:   12,
		ExcludeTitles: []string{},
		DefaultColor:  defaultColor,
		Sources:       []SourceConfig{},
		Dial:          defaultDial(),
		CacheDir:      "cache",
		Output:        "dial.png",
		BasicAuth:     nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.WindowHours <= 0 {
		c.WindowHours = 12
	}
	if c.ExcludeTitles == nil {
		c.ExcludeTitles = []string{}
	}
	if _, err := model.ParseColor(c.DefaultColor); err != nil {
		c.DefaultColor = defaultColor
	}
	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
	for i := range c.Sources {
		if c.Sources[i].ID == "" {
			c.Sources[i].ID = fmt.Sprintf("source-%d", i+1)
		}
	}
	if c.CacheDir == "" {
		c.CacheDir = "cache"
	}
	if c.Output == "" {
		c.Output = "dial.png"
	}
	c.Dial.normalize()
}

func (d *DialConfig) normalize() {
	def := defaultDial()
	if d.Width <= 0 {
		d.Width = def.Width
	}
	if d.Height <= 0 {
		d.Height = def.Height
	}
	if d.PeekCardHeight < 0 || d.PeekCardHeight > d.Height {
		d.PeekCardHeight = def.PeekCardHeight
	}
	if d.Density <= 0 || math.IsNaN(d.Density) || math.IsInf(d.Density, 0) {
		d.Density = def.Density
	}
	if d.MinDegreesForTitle <= 0 {
		d.MinDegreesForTitle = def.MinDegreesForTitle
	}
	if d.LongTitleWidth <= 0 {
		d.LongTitleWidth = def.LongTitleWidth
	}
	if d.LongTitleMaxSweep <= 0 {
		d.LongTitleMaxSweep = def.LongTitleMaxSweep
	}
	if _, err := model.ParseColor(d.Background); err != nil {
		d.Background = def.Background
	}
	if d.FontSize <= 0 {
		d.FontSize = def.FontSize
	}
	if d.CountdownFontSize <= 0 {
		d.CountdownFontSize = def.CountdownFontSize
	}
}

// RendererOptions maps the dial block onto renderer options.
func (d DialConfig) RendererOptions() dial.Options {
	opts := dial.DefaultOptions()
	opts.Layout.Density = geom.Density(d.Density)
	opts.Layout.MinDegreesForTitle = d.MinDegreesForTitle
	opts.Layout.LongTitleWidth = d.LongTitleWidth
	opts.Layout.LongTitleMaxSweep = d.LongTitleMaxSweep
	opts.Layout.TitleSize = d.FontSize
	opts.Layout.CountdownSize = d.CountdownFontSize
	opts.Background = model.ColorOrDefault(d.Background)
	return opts
}

// Frame builds a renderer frame for this dial. The peek card is only
// reserved in ambient mode.
func (d DialConfig) Frame(now time.Time, ambient bool, events []model.Event) dial.Frame {
	bounds := image.Rect(0, 0, d.Width, d.Height)
	f := dial.Frame{Now: now, Bounds: bounds, Ambient: ambient, Events: events}
	if ambient {
		f.PeekCard = dial.PeekCardBounds(bounds, d.PeekCardHeight)
	}
	return f
}

// Validate reports settings that Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("config: timezone %q: %w", c.Timezone, err))
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		errs = append(errs, fmt.Errorf("config: refresh %q: %w", c.RefreshCron, err))
	}
	seen := map[string]bool{}
	for _, s := range c.Sources {
		switch {
		case s.URL == "" && s.Path == "":
			errs = append(errs, fmt.Errorf("config: source %q has neither url nor path", s.ID))
		case s.URL != "" && s.Path != "":
			errs = append(errs, fmt.Errorf("config: source %q has both url and path", s.ID))
		}
		if seen[s.ID] {
			errs = append(errs, fmt.Errorf("config: duplicate source id %q", s.ID))
		}
		seen[s.ID] = true
		if s.Color != "" {
			if _, err := model.ParseColor(s.Color); err != nil {
				errs = append(errs, fmt.Errorf("config: source %q: %w", s.ID, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Location returns the configured timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".piedial-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
