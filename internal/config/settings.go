// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrLockTimeout is returned when file lock acquisition times out.
var ErrLockTimeout = errors.New("configuration locked by another process")

const lockTimeout = 5 * time.Second

// Config is the handful of settings the orchestrator core needs from a
// persisted file: budget limits and the paths to the pricing registry,
// the performance history and the cost log that the Cost Tracker and
// Router consult. Everything else the teacher's own
// Config carries (provider profiles, model tiers, secrets) belongs to the
// CLI/daemon surface this core does not specify.
type Config struct {
	Version                 int     `yaml:"version"`
	DailyTokenLimit         int     `yaml:"daily_token_limit"`
	DailyCostLimit          float64 `yaml:"daily_cost_limit"`
	PerWorkflowTokenLimit   int     `yaml:"per_workflow_token_limit"`
	PricingRegistryPath     string  `yaml:"pricing_registry_path"`
	PerformanceHistoryPath  string  `yaml:"performance_history_path"`
	CostLogPath             string  `yaml:"cost_log_path"`
}

// Default returns the configuration a fresh install starts with: generous
// budgets and registry paths rooted at the XDG config directory.
func Default() *Config {
	cfg := &Config{
		Version:               1,
		DailyTokenLimit:       1_000_000,
		DailyCostLimit:        20.0,
		PerWorkflowTokenLimit: 200_000,
	}
	if dir, err := ConfigDir(); err == nil {
		cfg.PricingRegistryPath = filepath.Join(dir, "pricing.yaml")
		cfg.PerformanceHistoryPath = filepath.Join(dir, "performance_history.json")
		cfg.CostLogPath = filepath.Join(dir, "cost_log.jsonl")
	}
	return cfg
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.DailyTokenLimit == 0 {
		c.DailyTokenLimit = d.DailyTokenLimit
	}
	if c.DailyCostLimit == 0 {
		c.DailyCostLimit = d.DailyCostLimit
	}
	if c.PerWorkflowTokenLimit == 0 {
		c.PerWorkflowTokenLimit = d.PerWorkflowTokenLimit
	}
	if c.PricingRegistryPath == "" {
		c.PricingRegistryPath = d.PricingRegistryPath
	}
	if c.PerformanceHistoryPath == "" {
		c.PerformanceHistoryPath = d.PerformanceHistoryPath
	}
	if c.CostLogPath == "" {
		c.CostLogPath = d.CostLogPath
	}
}

// SettingsFile manages the settings.yaml file with file locking for
// concurrent access protection.
type SettingsFile struct {
	path     string
	lockFile *os.File
}

// SettingsPath returns the full path to the settings.yaml file.
func SettingsPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.yaml"), nil
}

// NewSettingsFile creates a new SettingsFile instance for the given path.
// If path is empty, uses the default settings path.
func NewSettingsFile(path string) (*SettingsFile, error) {
	if path == "" {
		var err error
		path, err = SettingsPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get settings path: %w", err)
		}
	}
	return &SettingsFile{path: path}, nil
}

// Lock acquires an exclusive lock on the settings file.
func (s *SettingsFile) Lock() error {
	lockPath := s.path + ".lock"

	dir := filepath.Dir(lockPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	deadline := time.Now().Add(lockTimeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			s.lockFile = lockFile
			return nil
		}
		if time.Now().After(deadline) {
			lockFile.Close()
			return ErrLockTimeout
		}
		<-ticker.C
	}
}

// Unlock releases the file lock.
func (s *SettingsFile) Unlock() error {
	if s.lockFile == nil {
		return nil
	}
	if err := syscall.Flock(int(s.lockFile.Fd()), syscall.LOCK_UN); err != nil {
		s.lockFile.Close()
		s.lockFile = nil
		return fmt.Errorf("failed to unlock: %w", err)
	}
	if err := s.lockFile.Close(); err != nil {
		s.lockFile = nil
		return fmt.Errorf("failed to close lock file: %w", err)
	}
	s.lockFile = nil
	return nil
}

// Load loads the configuration from the settings file. The file must be
// locked before calling this method.
func (s *SettingsFile) Load() (*Config, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse settings YAML: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Save saves the configuration to the settings file using an atomic
// write. The file must be locked before calling this method.
func (s *SettingsFile) Save(cfg *Config) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// WithLock executes fn while holding the file lock.
func (s *SettingsFile) WithLock(fn func() error) error {
	if err := s.Lock(); err != nil {
		return err
	}
	defer s.Unlock()
	return fn()
}

// LoadSettings loads settings from path (or the default path, if empty)
// with automatic locking.
func LoadSettings(path string) (*Config, error) {
	sf, err := NewSettingsFile(path)
	if err != nil {
		return nil, err
	}
	var cfg *Config
	err = sf.WithLock(func() error {
		var loadErr error
		cfg, loadErr = sf.Load()
		return loadErr
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveSettings saves settings to path (or the default path, if empty)
// with automatic locking.
func SaveSettings(path string, cfg *Config) error {
	sf, err := NewSettingsFile(path)
	if err != nil {
		return err
	}
	return sf.WithLock(func() error {
		return sf.Save(cfg)
	})
}
