// Package config loads and saves the server configuration file and applies
// environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sqlgate/sqlgate"
)

// ErrNotFound is returned by Load when the file does not exist.
var ErrNotFound = errors.New("config not found")

// Environment variables read by ApplyEnv and Path.
const (
	EnvConfigPath = "SQLGATE_CONFIG_PATH"
	EnvDSN        = "SQLGATE_DSN"
	EnvDriver     = "DB_DRIVER"
	EnvHost       = "DB_HOST"
	EnvPort       = "DB_PORT"
	EnvUser       = "DB_USER"
	EnvName       = "DB_NAME"
)

// DefaultFile is used when no path is given and SQLGATE_CONFIG_PATH is unset.
const DefaultFile = ".sqlgate/config.yaml"

// Path resolves the config file path: the explicit flag value, then
// SQLGATE_CONFIG_PATH, then DefaultFile under the working directory.
func Path(flag string, getenv func(string) string) string {
	if flag != "" {
		return flag
	}
	if p := getenv(EnvConfigPath); p != "" {
		return p
	}
	return DefaultFile
}

// Default returns the configuration used when no file exists.
func Default() *sqlgate.ServerConfig {
	cfg := &sqlgate.ServerConfig{}
	cfg.Connection = sqlgate.ConnectionConfig{
		Driver: string(sqlgate.DriverMySQL),
		Host:   "localhost",
		Port:   3306,
		User:   "root",
		DBName: "employees",
	}
	cfg.Server = sqlgate.ServerSettings{
		Host:                   "0.0.0.0",
		Port:                   8000,
		MCPEnabled:             true,
		ShutdownTimeoutSeconds: 10,
	}
	cfg.Logging = sqlgate.LoggingConfig{Level: "info", Format: "json", Output: "stderr"}
	cfg.Pool = sqlgate.PoolConfig{
		MaxConns:          10,
		MaxConnLifetime:   "1h",
		MaxConnIdleTime:   "30m",
		HealthCheckPeriod: "1m",
	}
	cfg.Query = sqlgate.QueryConfig{
		DefaultTimeoutSeconds:       30,
		ListTablesTimeoutSeconds:    10,
		DescribeTableTimeoutSeconds: 10,
		MaxSQLLength:                100000,
	}
	return cfg
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads a JSON or YAML file, chosen by extension. Fields absent from
// the file keep their Default values.
func Load(path string) (*sqlgate.ServerConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if isYAML(path) {
		err = yaml.Unmarshal(b, cfg)
	} else {
		err = json.Unmarshal(b, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load with a missing file mapped to Default.
func LoadOrDefault(path string) (*sqlgate.ServerConfig, error) {
	cfg, err := Load(path)
	if errors.Is(err, ErrNotFound) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes cfg to path through a temp file and rename, so that readers
// never see a partial file.
func Save(path string, cfg *sqlgate.ServerConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	var out []byte
	var err error
	if isYAML(path) {
		out, err = yaml.Marshal(cfg)
	} else {
		out, err = json.MarshalIndent(cfg, "", "  ")
		out = append(out, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	_ = tmp.Chmod(0o600)

	_, writeErr := tmp.Write(out)
	syncErr := tmp.Sync()
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, syncErr, closeErr); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides connection fields from the environment.
func ApplyEnv(cfg *sqlgate.ServerConfig, getenv func(string) string) error {
	c := &cfg.Connection
	if v := getenv(EnvDriver); v != "" {
		c.Driver = v
	}
	if v := getenv(EnvHost); v != "" {
		c.Host = v
	}
	if v := getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid port %q", EnvPort, v)
		}
		c.Port = port
	}
	if v := getenv(EnvUser); v != "" {
		c.User = v
	}
	if v := getenv(EnvName); v != "" {
		c.DBName = v
	}
	if v := getenv(EnvDSN); v != "" {
		c.DSN = v
	}
	return nil
}

// Validate reports server settings that New does not check.
func Validate(cfg *sqlgate.ServerConfig) error {
	var errs []error
	if _, err := sqlgate.ParseDriver(cfg.Connection.Driver); err != nil {
		errs = append(errs, fmt.Errorf("connection.driver: %w", err))
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is invalid", cfg.Server.Port))
	}
	switch cfg.Logging.Format {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be json or text", cfg.Logging.Format))
	}
	if cfg.Pool.MaxConns <= 0 {
		errs = append(errs, errors.New("pool.max_conns must be > 0"))
	}
	return errors.Join(errs...)
}
