package barricade

import (
	"os"

	"github.com/himanishpuri/barricade/pkg/barricade/audio"
	"github.com/himanishpuri/barricade/pkg/barricade/clip"
	"github.com/himanishpuri/barricade/pkg/barricade/matcher"
	"github.com/himanishpuri/barricade/pkg/barricade/storage"
	"github.com/himanishpuri/barricade/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	DBDriver string
	DBPath   string // sqlite file, or a DSN for mysql
	ClipDir  string
	TempDir  string

	SampleRate    int
	MinConfidence float64
	MinScore      int

	Logger     *logger.Logger
	Store      Store
	ClipStore  clip.Store
	Recognizer matcher.Recognizer
	Player     audio.Player
	Registerer prometheus.Registerer
}

type Option func(*Config)

func WithDBDriver(driver string) Option {
	return func(c *Config) {
		c.DBDriver = driver
	}
}

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

// WithClipDir sets the directory imported clips are kept in. Ignored when a
// clip store is given.
func WithClipDir(dir string) Option {
	return func(c *Config) {
		c.ClipDir = dir
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

// WithThresholds sets the minimum confidence (percent) and aligned hash count
// for the fingerprint recognizer to report a match.
func WithThresholds(minConfidence float64, minScore int) Option {
	return func(c *Config) {
		c.MinConfidence = minConfidence
		c.MinScore = minScore
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStore(store Store) Option {
	return func(c *Config) {
		c.Store = store
	}
}

func WithClipStore(store clip.Store) Option {
	return func(c *Config) {
		c.ClipStore = store
	}
}

// WithRecognizer replaces the fingerprint recognizer, e.g. with matcher.Mock().
func WithRecognizer(r matcher.Recognizer) Option {
	return func(c *Config) {
		c.Recognizer = r
	}
}

// WithPlayer plays clips while they are being matched.
func WithPlayer(p audio.Player) Option {
	return func(c *Config) {
		c.Player = p
	}
}

// WithRegisterer registers detection metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registerer = reg
	}
}

func defaultConfig() *Config {
	return &Config{
		DBDriver:   storage.DriverSQLite,
		DBPath:     storage.DefaultDBFile,
		ClipDir:    "clips",
		TempDir:    os.TempDir(),
		SampleRate: audio.DefaultSampleRate,
	}
}
