// Package config loads barricade settings from a TOML file, a .env file and
// the environment, in increasing order of precedence.
package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/himanishpuri/barricade/pkg/barricade"
	"github.com/himanishpuri/barricade/pkg/barricade/audio"
	"github.com/himanishpuri/barricade/pkg/barricade/clip"
	"github.com/himanishpuri/barricade/pkg/barricade/matcher"
	"github.com/himanishpuri/barricade/pkg/barricade/storage"
	"github.com/himanishpuri/barricade/pkg/logger"
	"github.com/joho/godotenv"
)

// Config is the full configuration shared by the CLI and the server.
type Config struct {
	Database Database
	Clips    Clips
	Matcher  Matcher
	Server   Server
	Log      Log
}

type Database struct {
	// Driver is "sqlite" or "mysql"
	Driver string
	// Path is the sqlite file, or the DSN for mysql
	Path string
}

type Clips struct {
	// Dir is where clips are kept when no bucket is configured
	Dir     string
	TempDir string
	Minio   Minio
}

type Minio struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	Prefix    string
}

// Enabled reports whether clips go to object storage.
func (m Minio) Enabled() bool {
	return m.Endpoint != "" && m.Bucket != ""
}

type Matcher struct {
	SampleRate    int
	MinConfidence float64
	MinScore      int
	// Mock answers every detection with a canned match
	Mock bool
	// Playback plays clips with ffplay while they are matched
	Playback bool
}

type Server struct {
	Addr            string
	ShutdownTimeout Duration
	// MaxUploadMB caps multipart clip uploads held in memory
	MaxUploadMB int64
	// Origins allowed by CORS, "*" for all
	Origins []string
}

type Log struct {
	Level string
	File  string
	JSON  bool
}

func defaults() Config {
	return Config{
		Database: Database{
			Driver: storage.DriverSQLite,
			Path:   storage.DefaultDBFile,
		},
		Clips: Clips{
			Dir:     "clips",
			TempDir: os.TempDir(),
		},
		Matcher: Matcher{
			SampleRate: audio.DefaultSampleRate,
		},
		Server: Server{
			Addr:            ":8080",
			ShutdownTimeout: Duration(10 * time.Second),
			MaxUploadMB:     32,
			Origins:         []string{"*"},
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads TOML from r on top of the defaults.
func Load(r io.Reader) (Config, error) {
	c := defaults()
	if r == nil {
		return c, nil
	}
	m, err := toml.NewDecoder(r).Decode(&c)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if undec := m.Undecoded(); len(undec) > 0 {
		logger.Warnf("config: unknown keys %v", undec)
	}
	return c, nil
}

// LoadFile loads the TOML file at path. An empty path yields the defaults.
func LoadFile(path string) (Config, error) {
	if path == "" {
		return defaults(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: opening %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// FromEnv loads .env (if present), then the file named by BARRICADE_CONFIG,
// then applies environment overrides.
func FromEnv() (Config, error) {
	// existing variables win over .env
	_ = godotenv.Load()

	c, err := LoadFile(os.Getenv("BARRICADE_CONFIG"))
	if err != nil {
		return Config{}, err
	}
	c.applyEnv()
	return c, nil
}

func (c *Config) applyEnv() {
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.Path = getEnv("BARRICADE_DB_PATH", c.Database.Path)
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.Path = dsn
	}

	c.Clips.Dir = getEnv("CLIP_DIR", c.Clips.Dir)
	c.Clips.TempDir = getEnv("BARRICADE_TEMP_DIR", c.Clips.TempDir)
	c.Clips.Minio.Endpoint = getEnv("MINIO_ENDPOINT", c.Clips.Minio.Endpoint)
	c.Clips.Minio.AccessKey = getEnv("MINIO_ACCESS_KEY", c.Clips.Minio.AccessKey)
	c.Clips.Minio.SecretKey = getEnv("MINIO_SECRET_KEY", c.Clips.Minio.SecretKey)
	c.Clips.Minio.Bucket = getEnv("MINIO_BUCKET", c.Clips.Minio.Bucket)
	c.Clips.Minio.Region = getEnv("MINIO_REGION", c.Clips.Minio.Region)
	c.Clips.Minio.UseSSL = getEnvBool("MINIO_USE_SSL", c.Clips.Minio.UseSSL)

	c.Matcher.SampleRate = getEnvInt("SAMPLE_RATE", c.Matcher.SampleRate)
	c.Matcher.MinConfidence = getEnvFloat("MIN_CONFIDENCE", c.Matcher.MinConfidence)
	c.Matcher.MinScore = getEnvInt("MIN_SCORE", c.Matcher.MinScore)
	c.Matcher.Mock = getEnvBool("MATCHER_MOCK", c.Matcher.Mock)
	c.Matcher.Playback = getEnvBool("MATCHER_PLAYBACK", c.Matcher.Playback)

	c.Server.Addr = getEnv("SERVER_ADDR", c.Server.Addr)
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.Server.Origins = splitList(origins)
	}

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnv("LOG_FILE", c.Log.File)
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		c.Log.JSON = format == "json"
	}
}

// Logger builds the logger described by the Log section.
func (c Config) Logger() *logger.Logger {
	cfg := logger.DefaultConfig()
	cfg.Level = logger.ParseLevel(c.Log.Level)
	cfg.File = c.Log.File
	cfg.JSON = c.Log.JSON
	return logger.New(cfg)
}

// ClipStore returns the MinIO bucket store when one is configured, nil
// otherwise so the service falls back to the clip directory.
func (c Config) ClipStore(ctx context.Context) (clip.Store, error) {
	m := c.Clips.Minio
	if !m.Enabled() {
		return nil, nil
	}
	return clip.NewMinioStore(ctx, clip.MinioConfig{
		Endpoint:  m.Endpoint,
		AccessKey: m.AccessKey,
		SecretKey: m.SecretKey,
		Bucket:    m.Bucket,
		Region:    m.Region,
		UseSSL:    m.UseSSL,
		Prefix:    m.Prefix,
	})
}

// Options turns the configuration into service options.
func (c Config) Options(ctx context.Context, log *logger.Logger) ([]barricade.Option, error) {
	opts := []barricade.Option{
		barricade.WithDBDriver(c.Database.Driver),
		barricade.WithDBPath(c.Database.Path),
		barricade.WithClipDir(c.Clips.Dir),
		barricade.WithTempDir(c.Clips.TempDir),
		barricade.WithSampleRate(c.Matcher.SampleRate),
		barricade.WithThresholds(c.Matcher.MinConfidence, c.Matcher.MinScore),
		barricade.WithLogger(log),
	}

	store, err := c.ClipStore(ctx)
	if err != nil {
		return nil, err
	}
	if store != nil {
		opts = append(opts, barricade.WithClipStore(store))
	}
	if c.Matcher.Mock {
		opts = append(opts, barricade.WithRecognizer(matcher.Mock()))
	}
	if c.Matcher.Playback {
		opts = append(opts, barricade.WithPlayer(audio.NewFFPlay()))
	}
	return opts, nil
}

// Save writes the configuration to w in TOML format.
func (c Config) Save(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Duration is a time.Duration that supports Text(Un)Marshaler
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	n, err := time.ParseDuration(string(text))
	*d = Duration(n)
	return err
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

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
