package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/factorio-up/internal/logger"
)

// Settings holds everything a single install-and-launch run needs.
type Settings struct {
	// InitMap requests creation of a new save file when none exists yet.
	InitMap bool `yaml:"init_map"`
	// SaveFile is the save archive created by map initialization.
	SaveFile string `yaml:"save_file"`
	// MapGenSettings is the map generator settings file.
	MapGenSettings string `yaml:"map_gen_settings"`
	// MapSettings is the map settings file.
	MapSettings string `yaml:"map_settings"`
	// ExePath is where the installed server binary is symlinked, if set.
	ExePath string `yaml:"exe_path"`
	// DataDir is where the installed data directory is symlinked, if set.
	DataDir string `yaml:"data_dir"`
	// User is the OS account to run the server as, if set.
	User string `yaml:"user"`
	// Command replaces this process once installation is done.
	Command []string `yaml:"command"`
	// Timeout bounds the wait for HTTP response headers.
	Timeout time.Duration `yaml:"timeout"`
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultSaveFile is the save created by --init-map.
	DefaultSaveFile = "server-default.zip"

	// DefaultMapGenSettings is the map generator settings file name.
	DefaultMapGenSettings = "map-gen-settings.json"

	// DefaultMapSettings is the map settings file name.
	DefaultMapSettings = "map-settings.json"

	// DefaultTimeout bounds the wait for HTTP response headers.
	DefaultTimeout = 30 * time.Second

	// DefaultLogLevel is used when no level is configured.
	DefaultLogLevel = "info"
)

var (
	errSettingsNotSet     = errors.New("settings are not set")
	errSaveFileRequired   = errors.New("save file must not be empty")
	errMapFilesRequired   = errors.New("map settings files must not be empty")
	errUnknownLogLevel    = errors.New("unknown log level")
	errEmptyCommandBinary = errors.New("command must start with a program name")
)

// Default returns the settings used when neither a file nor flags say otherwise.
func Default() *Settings {
	return &Settings{
		SaveFile:       DefaultSaveFile,
		MapGenSettings: DefaultMapGenSettings,
		MapSettings:    DefaultMapSettings,
		Timeout:        DefaultTimeout,
		LogLevel:       DefaultLogLevel,
	}
}

// Load reads settings from path on top of Default and validates them.
func Load(path string) (*Settings, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	settings := Default()
	if err = yaml.Unmarshal(contents, settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// Validate checks required fields and fills defaults for optional ones.
func Validate(settings *Settings) error {
	if settings == nil {
		return errSettingsNotSet
	}

	if strings.TrimSpace(settings.SaveFile) == "" {
		return errSaveFileRequired
	}

	if strings.TrimSpace(settings.MapGenSettings) == "" || strings.TrimSpace(settings.MapSettings) == "" {
		return errMapFilesRequired
	}

	if len(settings.Command) > 0 && settings.Command[0] == "" {
		return errEmptyCommandBinary
	}

	if _, ok := logger.ParseLogLevel(settings.LogLevel); !ok {
		return fmt.Errorf("%w: %s", errUnknownLogLevel, settings.LogLevel)
	}

	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	settings.User = strings.TrimSpace(settings.User)

	return nil
}
