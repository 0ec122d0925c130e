package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config captures everything easel reads from config.toml and the environment.
type Config struct {
	API      APIConfig
	Launcher LauncherConfig
	Generate GenerateConfig
}

// APIConfig describes how to reach the generation server.
type APIConfig struct {
	Bind         string
	PollInterval time.Duration
	Timeout      time.Duration // zero disables the job deadline
}

// LauncherConfig drives `easel launch`.
type LauncherConfig struct {
	EntryFile    string
	Interpreter  string
	Modules      []string
	AssetBind    string
	AssetDir     string
	FrontendPage string
	ReadyTimeout time.Duration
	LogDir       string
}

// GenerateConfig holds defaults for the example driver.
type GenerateConfig struct {
	Images int
	Steps  int
	// StreamFreq asks the server to publish an intermediate image every N
	// steps. Zero leaves the field out of the request.
	StreamFreq int
	OutputDir  string
	Prefix     string
}

const (
	defaultConfigPath   = "~/.config/easel/config.toml"
	defaultLogDir       = "~/.local/share/easel/logs"
	defaultAPIBind      = "127.0.0.1:5001"
	defaultAssetBind    = "127.0.0.1:8080"
	defaultPollInterval = 2 * time.Second
	defaultJobTimeout   = 10 * time.Minute
	defaultReadyTimeout = 60 * time.Second
	defaultEntryFile    = "api.py"
	defaultInterpreter  = "python3"
	defaultFrontendPage = "frontend.html"
	defaultImages       = 1
	defaultSteps        = 100
	defaultPrefix       = "example"
)

// Environment overrides, applied after the file.
const (
	EnvAPIBind   = "EASEL_API_BIND"
	EnvAssetBind = "EASEL_ASSET_BIND"
	EnvLogDir    = "EASEL_LOG_DIR"
)

// DefaultModules are the Python modules api.py imports at startup.
var DefaultModules = []string{"torch", "flask", "flask_cors", "diffusers"}

type rawConfig struct {
	API struct {
		Bind         string `toml:"bind"`
		PollInterval string `toml:"poll_interval"`
		Timeout      string `toml:"timeout"`
	} `toml:"api"`
	Launcher struct {
		EntryFile    string   `toml:"entry_file"`
		Interpreter  string   `toml:"interpreter"`
		Modules      []string `toml:"modules"`
		AssetBind    string   `toml:"asset_bind"`
		AssetDir     string   `toml:"asset_dir"`
		FrontendPage string   `toml:"frontend_page"`
		ReadyTimeout string   `toml:"ready_timeout"`
		LogDir       string   `toml:"log_dir"`
	} `toml:"launcher"`
	Generate struct {
		Images     int    `toml:"images"`
		Steps      int    `toml:"steps"`
		StreamFreq int    `toml:"stream_freq"`
		OutputDir  string `toml:"output_dir"`
		Prefix     string `toml:"prefix"`
	} `toml:"generate"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		API: APIConfig{
			Bind:         defaultAPIBind,
			PollInterval: defaultPollInterval,
			Timeout:      defaultJobTimeout,
		},
		Launcher: LauncherConfig{
			EntryFile:    defaultEntryFile,
			Interpreter:  defaultInterpreter,
			Modules:      append([]string(nil), DefaultModules...),
			AssetBind:    defaultAssetBind,
			AssetDir:     ".",
			FrontendPage: defaultFrontendPage,
			ReadyTimeout: defaultReadyTimeout,
			LogDir:       mustExpand(defaultLogDir),
		},
		Generate: GenerateConfig{
			Images:    defaultImages,
			Steps:     defaultSteps,
			OutputDir: ".",
			Prefix:    defaultPrefix,
		},
	}
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an
// error.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load locates and parses the easel config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := applyEnv(&cfg); err != nil {
				return Config{}, err
			}
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := merge(&cfg, raw); err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func merge(cfg *Config, raw rawConfig) error {
	if bind := strings.TrimSpace(raw.API.Bind); bind != "" {
		cfg.API.Bind = bind
	}
	if err := parseDuration("api.poll_interval", raw.API.PollInterval, &cfg.API.PollInterval); err != nil {
		return err
	}
	if err := parseDuration("api.timeout", raw.API.Timeout, &cfg.API.Timeout); err != nil {
		return err
	}

	l := raw.Launcher
	if v := strings.TrimSpace(l.EntryFile); v != "" {
		cfg.Launcher.EntryFile = v
	}
	if v := strings.TrimSpace(l.Interpreter); v != "" {
		cfg.Launcher.Interpreter = v
	}
	if modules := filterStrings(l.Modules); len(modules) > 0 {
		cfg.Launcher.Modules = modules
	}
	if v := strings.TrimSpace(l.AssetBind); v != "" {
		cfg.Launcher.AssetBind = v
	}
	if v := strings.TrimSpace(l.AssetDir); v != "" {
		cfg.Launcher.AssetDir = v
	}
	if v := strings.TrimSpace(l.FrontendPage); v != "" {
		cfg.Launcher.FrontendPage = strings.TrimPrefix(v, "/")
	}
	if err := parseDuration("launcher.ready_timeout", l.ReadyTimeout, &cfg.Launcher.ReadyTimeout); err != nil {
		return err
	}
	if v := strings.TrimSpace(l.LogDir); v != "" {
		cfg.Launcher.LogDir = mustExpand(v)
	}

	g := raw.Generate
	if g.Images > 0 {
		cfg.Generate.Images = g.Images
	}
	if g.Steps > 0 {
		cfg.Generate.Steps = g.Steps
	}
	if g.StreamFreq < 0 {
		return fmt.Errorf("generate.stream_freq: must not be negative, got %d", g.StreamFreq)
	}
	if g.StreamFreq > 0 {
		cfg.Generate.StreamFreq = g.StreamFreq
	}
	if v := strings.TrimSpace(g.OutputDir); v != "" {
		cfg.Generate.OutputDir = mustExpand(v)
	}
	if v := strings.TrimSpace(g.Prefix); v != "" {
		cfg.Generate.Prefix = v
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv(EnvAPIBind)); v != "" {
		cfg.API.Bind = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAssetBind)); v != "" {
		cfg.Launcher.AssetBind = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogDir)); v != "" {
		expanded, err := expandPath(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLogDir, err)
		}
		cfg.Launcher.LogDir = expanded
	}
	return nil
}

// FrontendURL returns the browser URL of the front-end page served by the
// asset server. The host is always localhost; only the port follows AssetBind.
func (c Config) FrontendURL() string {
	port := "8080"
	if _, p, err := net.SplitHostPort(c.Launcher.AssetBind); err == nil && p != "" {
		port = p
	}
	page := strings.TrimPrefix(c.Launcher.FrontendPage, "/")
	if page == "" {
		page = defaultFrontendPage
	}
	return fmt.Sprintf("http://localhost:%s/%s", port, page)
}

// LogPath returns the path of a named log file inside the log directory.
func (c Config) LogPath(name string) string {
	dir := strings.TrimSpace(c.Launcher.LogDir)
	if dir == "" {
		dir = mustExpand(defaultLogDir)
	}
	return filepath.Join(dir, name+".log")
}

func parseDuration(key, value string, dest *time.Duration) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse config: %s: %w", key, err)
	}
	if d < 0 {
		return fmt.Errorf("parse config: %s must not be negative", key)
	}
	*dest = d
	return nil
}

func filterStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
