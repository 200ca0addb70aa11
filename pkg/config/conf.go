// Package config resolves runtime settings from three layers: a yaml config
// file in the app home dir, an optional .env file, and process environment
// variables. Environment beats file.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	configFileName = "config.yaml"
	dirMode        = 0700
	fileMode       = 0600

	defaultAppName  = "freq"
	defaultEnv      = "dev"
	defaultPort     = 8080
	defaultBaseRate = 0.02
	defaultLogLevel = "info"
)

// Settings is the resolved app configuration. BaseFraudRate anchors the
// logistic bias; it must be strictly inside (0,1).
type Settings struct {
	AppName       string  `yaml:"app_name"`
	Env           string  `yaml:"env"`
	Port          int     `yaml:"port"`
	BaseFraudRate float64 `yaml:"base_fraud_rate"`
	BuildWeights  bool    `yaml:"build_weights"`
	PriorsFile    string  `yaml:"priors_file,omitempty"`
	RawProbsFile  string  `yaml:"raw_probs_file,omitempty"`
	DBPath        string  `yaml:"db_path,omitempty"`
	LogLevel      string  `yaml:"log_level"`
}

func getDefaultSettings() *Settings {
	return &Settings{
		AppName:       defaultAppName,
		Env:           defaultEnv,
		Port:          defaultPort,
		BaseFraudRate: defaultBaseRate,
		LogLevel:      defaultLogLevel,
	}
}

// Save writes the settings file into the given directory.
func Save(dirPath string, s *Settings) error {
	if dirPath == "" {
		return errors.New("config directory required")
	}
	if s == nil {
		return errors.New("settings required")
	}
	b, err := yaml.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "failed to marshal settings")
	}
	path := filepath.Join(dirPath, configFileName)
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return errors.Wrapf(err, "failed to write config file: %s", configFileName)
	}
	return nil
}

// ReadOrCreate loads settings from the directory, creating a default file
// on first run, then applies .env and environment overrides.
func ReadOrCreate(dirPath string) (*Settings, error) {
	if dirPath == "" {
		return nil, errors.New("config directory required")
	}

	if _, err := os.Stat(dirPath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dirPath, dirMode); err != nil {
			return nil, errors.Wrapf(err, "failed to create dir: %s", dirPath)
		}
	}

	path := filepath.Join(dirPath, configFileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := Save(dirPath, getDefaultSettings()); err != nil {
			return nil, errors.Wrap(err, "failed to create default config")
		}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading config file: %s", path)
	}

	s := getDefaultSettings()
	if err := yaml.Unmarshal(b, s); err != nil {
		return nil, errors.Wrapf(err, "error unmarshalling config file: %s", path)
	}

	// .env is optional; absence is not an error.
	_ = godotenv.Load(".env")
	s.applyEnv()

	if !(s.BaseFraudRate > 0 && s.BaseFraudRate < 1) {
		return nil, errors.Errorf("base fraud rate %v must be strictly between 0 and 1", s.BaseFraudRate)
	}
	if s.Port <= 0 || s.Port > 65535 {
		return nil, errors.Errorf("invalid port: %d", s.Port)
	}
	return s, nil
}

func (s *Settings) applyEnv() {
	if v := os.Getenv("FREQ_ENV"); v != "" {
		s.Env = v
	}
	if v := os.Getenv("FREQ_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			s.Port = p
		}
	}
	if v := os.Getenv("FREQ_BASE_RATE"); v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil {
			s.BaseFraudRate = r
		}
	}
	if v := os.Getenv("FREQ_BUILD_WEIGHTS"); v != "" {
		s.BuildWeights = parseBool(v)
	}
	if v := os.Getenv("FREQ_PRIORS_FILE"); v != "" {
		s.PriorsFile = v
	}
	if v := os.Getenv("FREQ_RAW_PROBS_FILE"); v != "" {
		s.RawProbsFile = v
	}
	if v := os.Getenv("FREQ_DB"); v != "" {
		s.DBPath = v
	}
	if v := os.Getenv("FREQ_LOG_LEVEL"); v != "" {
		s.LogLevel = v
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	}
	return false
}

// GetOrCreateHomeDir returns the app home directory for the current user,
// creating it on first use.
func GetOrCreateHomeDir(name string) (path string, created bool, err error) {
	if name == "" {
		return "", false, errors.New("name cannot be empty")
	}

	if !strings.HasPrefix(name, ".") {
		name = "." + name
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, errors.Wrap(err, "failed to get user home dir")
	}

	dir := filepath.Join(home, name)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := os.Mkdir(dir, dirMode); err != nil {
			return "", false, errors.Wrapf(err, "failed to create dir: %s", dir)
		}
		created = true
	}
	return dir, created, nil
}
