package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zeusync/enginedb/internal/core/observability/log"
	"github.com/zeusync/enginedb/internal/core/storage"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid configuration")

// Config is the on-disk configuration of the asset database tools.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	Server  ServerConfig  `yaml:"server"`
}

type StorageConfig struct {
	WorkDir       string `yaml:"work_dir"`
	AssetsDir     string `yaml:"assets_dir"`
	HiddenDir     string `yaml:"hidden_dir"`
	ScriptSuffix  string `yaml:"script_suffix"`
	ListPolicy    string `yaml:"list_policy"`
	VerifyWorkers int    `yaml:"verify_workers"`
}

type LogConfig struct {
	Level    string   `yaml:"level"`
	Encoding string   `yaml:"encoding"`
	Outputs  []string `yaml:"outputs"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// MaxClients caps concurrent refresh-feed connections. Zero means no cap.
	MaxClients int `yaml:"max_clients"`
}

func Default() Config {
	s := storage.DefaultConfig()
	return Config{
		Storage: StorageConfig{
			AssetsDir:     s.AssetsDir,
			HiddenDir:     s.HiddenDir,
			ScriptSuffix:  s.ScriptSuffix,
			ListPolicy:    string(s.ListPolicy),
			VerifyWorkers: s.VerifyWorkers,
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
		},
		Server: ServerConfig{
			Host:       "127.0.0.1",
			Port:       8088,
			MaxClients: 64,
		},
	}
}

// Load reads a YAML file on top of Default. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = f.Close() }()

	c, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// Decode parses YAML from r over the defaults and validates the result.
func Decode(r io.Reader) (Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if err := c.StorageConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	switch c.Log.Encoding {
	case "", "json", "console":
	default:
		return fmt.Errorf("%w: log encoding %q", ErrInvalid, c.Log.Encoding)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d", ErrInvalid, c.Server.Port)
	}
	if c.Server.MaxClients < 0 {
		return fmt.Errorf("%w: server max_clients %d", ErrInvalid, c.Server.MaxClients)
	}
	return nil
}

func (c Config) StorageConfig() storage.Config {
	return storage.Config{
		WorkDir:       c.Storage.WorkDir,
		AssetsDir:     c.Storage.AssetsDir,
		HiddenDir:     c.Storage.HiddenDir,
		ScriptSuffix:  c.Storage.ScriptSuffix,
		ListPolicy:    storage.ListPolicy(c.Storage.ListPolicy),
		VerifyWorkers: c.Storage.VerifyWorkers,
	}
}

// LogOptions converts the log section. Validate has already checked the level.
func (c Config) LogOptions() log.Options {
	level, _ := log.ParseLevel(c.Log.Level)
	return log.Options{
		Level:       level,
		Encoding:    c.Log.Encoding,
		OutputPaths: c.Log.Outputs,
	}
}

func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
