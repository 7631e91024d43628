package store

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ConnectionOptions are the discrete connection fields of a config file.
// For SQLite, Database is the file path.
type ConnectionOptions struct {
	Driver   Driver
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DefaultPort returns the conventional port of a networked driver, or 0.
func DefaultPort(d Driver) int {
	switch d {
	case DriverMySQL:
		return 3306
	case DriverPostgres:
		return 5432
	case DriverSQLServer:
		return 1433
	}
	return 0
}

// BuildDSN renders a driver-specific connection string.
func BuildDSN(o ConnectionOptions) (string, error) {
	if o.Driver == DriverSQLite {
		return sqliteDSN(o.Database)
	}

	if o.Host == "" {
		return "", errors.New("connection.host is required")
	}
	port := o.Port
	if port == 0 {
		port = DefaultPort(o.Driver)
	}
	if port <= 0 || port > 65535 {
		return "", fmt.Errorf("connection.port %d is invalid", o.Port)
	}
	if o.User == "" {
		return "", errors.New("connection.user is required")
	}
	addr := net.JoinHostPort(o.Host, strconv.Itoa(port))

	switch o.Driver {
	case DriverMySQL:
		cfg := mysql.NewConfig()
		cfg.User = o.User
		cfg.Passwd = o.Password
		cfg.Net = "tcp"
		cfg.Addr = addr
		cfg.DBName = o.Database
		cfg.ParseTime = true
		// Report matched rows, not changed rows, for UPDATE.
		cfg.ClientFoundRows = true
		return cfg.FormatDSN(), nil

	case DriverPostgres:
		u := &url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(o.User, o.Password),
			Host:   addr,
			Path:   "/" + o.Database,
		}
		if o.SSLMode != "" {
			q := url.Values{}
			q.Set("sslmode", o.SSLMode)
			u.RawQuery = q.Encode()
		}
		return u.String(), nil

	case DriverSQLServer:
		u := &url.URL{
			Scheme: "sqlserver",
			User:   url.UserPassword(o.User, o.Password),
			Host:   addr,
		}
		q := url.Values{}
		if o.Database != "" {
			q.Set("database", o.Database)
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, o.Driver)
}

// sqliteDSN adds a busy timeout so that concurrent writers wait for the
// file lock instead of failing with SQLITE_BUSY.
func sqliteDSN(path string) (string, error) {
	if path == "" {
		return "", errors.New("connection.database (sqlite file path) is required")
	}
	if strings.Contains(path, "busy_timeout") {
		return path, nil
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return path + sep + "_pragma=busy_timeout(5000)", nil
}
