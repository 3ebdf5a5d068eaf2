// Package session provides the mediator's ambient concerns: configuration
// loading and leveled logging, shared by the dispatcher, stepping
// controller, and snapshot loader.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"
)

// Version information for the mediator binary.
const (
	Version   = "0.1.0"
	BuildDate = "2026-08-06"
	CommitSHA = "unknown"
)

// VersionInfo is structured build metadata surfaced by --version.
type VersionInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	CommitSHA string `json:"commit_sha"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Arch      string `json:"arch"`
}

// GetVersionInfo returns the current build's version metadata.
func GetVersionInfo() *VersionInfo {
	return &VersionInfo{
		Version:   Version,
		BuildDate: BuildDate,
		CommitSHA: CommitSHA,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Config holds the external collaborator's transport and timing settings
// (spec §6 "Configuration inputs"). It is the only configuration this
// module persists; front-end preferences live elsewhere.
type Config struct {
	// TransportKind selects the backend: "tcp", "serial", or "quic".
	TransportKind string `json:"transport_kind"`
	Host          string `json:"host"`
	Port          int    `json:"port"`
	SerialDevice  string `json:"serial_device,omitempty"`
	SerialBaud    int    `json:"serial_baud,omitempty"`

	ConnectTimeoutMs  int64 `json:"connect_timeout_ms"`
	ResponseTimeoutMs int64 `json:"response_timeout_ms"`
	StepOutWatchdogMs int64 `json:"step_out_watchdog_ms"`

	// AutoLoadDir, if set, is watched for new .sna/.nex files (§4.13).
	AutoLoadDir string `json:"auto_load_dir,omitempty"`

	Verbose bool `json:"verbose"`
	Debug   bool `json:"debug"`
}

// DefaultConfig returns the spec's documented defaults: 1s connect
// timeout, 3s response timeout, no separate step-out watchdog (0, so
// StepOut waits use the response timeout), no auto-load.
func DefaultConfig() *Config {
	return &Config{
		TransportKind:     "tcp",
		Host:              "localhost",
		Port:              11000,
		ConnectTimeoutMs:  1000,
		ResponseTimeoutMs: 3000,
		StepOutWatchdogMs: 0,
	}
}

// LoadConfig reads a JSON config file, falling back to defaults for any
// field left unset and to an entirely default Config if the file is absent.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes the config back out as indented JSON.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Logger is leveled printf-style logging gated by Verbose/DebugMode,
// used throughout the mediator to report the events named in spec §7.
type Logger struct {
	Verbose   bool
	DebugMode bool
}

// NewLogger creates a logger with the given verbosity flags.
func NewLogger(verbose, debug bool) *Logger {
	return &Logger{Verbose: verbose, DebugMode: debug}
}

func (l *Logger) timestamp() string {
	return time.Now().Format("15:04:05.000")
}

// Info logs an informational message when Verbose is set.
func (l *Logger) Info(format string, args ...interface{}) {
	if l.Verbose {
		fmt.Printf("[INFO] %s: %s\n", l.timestamp(), fmt.Sprintf(format, args...))
	}
}

// Debug logs a debug message when DebugMode is set.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.DebugMode {
		fmt.Printf("[DEBUG] %s: %s\n", l.timestamp(), fmt.Sprintf(format, args...))
	}
}

// Warn logs a warning, emitted for validation and expression-evaluation
// failures (spec §7). Always printed.
func (l *Logger) Warn(format string, args ...interface{}) {
	fmt.Printf("[WARN] %s: %s\n", l.timestamp(), fmt.Sprintf(format, args...))
}

// Error logs an error, emitted for transport/protocol failures (spec §7).
func (l *Logger) Error(format string, args ...interface{}) {
	fmt.Printf("[ERROR] %s: %s\n", l.timestamp(), fmt.Sprintf(format, args...))
}
