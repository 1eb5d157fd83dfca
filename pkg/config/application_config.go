package config

import (
	"fmt"

	"github.com/nspcc-dev/notetree/pkg/core/storage/dbconfig"
	"go.uber.org/zap/zapcore"
)

// Log encodings supported by ApplicationConfiguration.
const (
	LogEncodingConsole = "console"
	LogEncodingJSON    = "json"
)

// ApplicationConfiguration config specific to the application instance.
type ApplicationConfiguration struct {
	LogLevel        string                   `yaml:"LogLevel"`
	LogPath         string                   `yaml:"LogPath"`
	LogEncoding     string                   `yaml:"LogEncoding"`
	DBConfiguration dbconfig.DBConfiguration `yaml:"DBConfiguration"`
	Prometheus      BasicService             `yaml:"Prometheus"`
	Pprof           BasicService             `yaml:"Pprof"`
}

// Validate checks ApplicationConfiguration for internal consistency and returns
// an error if any invalid settings are found.
func (a *ApplicationConfiguration) Validate() error {
	if len(a.LogLevel) != 0 {
		if _, err := zapcore.ParseLevel(a.LogLevel); err != nil {
			return fmt.Errorf("invalid LogLevel: %w", err)
		}
	}
	switch a.LogEncoding {
	case "", LogEncodingConsole, LogEncodingJSON:
	default:
		return fmt.Errorf("invalid LogEncoding: %q", a.LogEncoding)
	}
	switch a.DBConfiguration.Type {
	case dbconfig.InMemoryDB, dbconfig.LevelDB, dbconfig.BoltDB:
	default:
		return fmt.Errorf("unknown DB type: %q", a.DBConfiguration.Type)
	}
	if a.DBConfiguration.CacheSize < 0 {
		return fmt.Errorf("negative CacheSize: %d", a.DBConfiguration.CacheSize)
	}
	if a.Prometheus.Enabled && len(a.Prometheus.Addresses) == 0 {
		return fmt.Errorf("no Prometheus addresses specified")
	}
	if a.Pprof.Enabled && len(a.Pprof.Addresses) == 0 {
		return fmt.Errorf("no Pprof addresses specified")
	}
	return nil
}
