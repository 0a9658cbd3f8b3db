// internal/config/model.go
//
// Typed configuration model.
//
// Context
// -------
// These structs define the shape of the tree that `loader.go` builds from
// two layers:
//
//   • `config.<environment>.yml`   – primary static file,
//   • `APP_`-prefixed environment  – highest precedence.
//
// Port fields are uint16.  YAML integers and overlay strings are both
// accepted but must fit without loss; see `decode.go`.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`.
//   • Resolved Settings are read-only.  Tests that need a private database
//     or port call Isolated, which returns a copy.

package config

import (
	"net"
	"strconv"
	"time"
)

//
// Application section
//

// ApplicationSettings holds listener and HTTP-edge tunables.
type ApplicationSettings struct {
	Host           string    `koanf:"host"            validate:"required"`
	Port           uint16    `koanf:"port"`
	BaseURL        string    `koanf:"base_url"        validate:"omitempty,url"`
	ForceHTTPS     bool      `koanf:"force_https"`
	AllowedOrigins []string  `koanf:"allowed_origins" validate:"dive,required"`
	RateLimit      RateLimit `koanf:"rate_limit"`
}

// RateLimit throttles POST /subscriptions.  RPS 0 disables the limiter.
type RateLimit struct {
	RPS   float64 `koanf:"rps"   validate:"gte=0"`
	Burst int     `koanf:"burst" validate:"gte=0"`
}

// Address returns "host:port" suitable for net.Listen.
func (a ApplicationSettings) Address() string {
	return net.JoinHostPort(a.Host, strconv.FormatUint(uint64(a.Port), 10))
}

//
// Database section
//

// DatabaseSettings describes one Postgres server and database.
//
// SSLMode true means encrypted transport is mandatory ("require").  False
// still prefers TLS but tolerates plaintext ("prefer").
type DatabaseSettings struct {
	Username        string        `koanf:"username"          validate:"required"`
	Password        string        `koanf:"password"`
	Host            string        `koanf:"host"              validate:"required"`
	Port            uint16        `koanf:"port"              validate:"required"`
	DBName          string        `koanf:"db_name"           validate:"required"`
	SSLMode         bool          `koanf:"ssl_mode"`
	MaxOpenConns    int           `koanf:"max_open_conns"    validate:"gte=0"`
	MaxIdleConns    int           `koanf:"max_idle_conns"    validate:"gte=0"`
	AcquireTimeout  time.Duration `koanf:"acquire_timeout"   validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"gte=0"`
}

//
// Log section
//

// LogSettings configures the zap logger built by internal/logger.
type LogSettings struct {
	Dir     string `koanf:"dir"`
	Level   string `koanf:"level"   validate:"omitempty,oneof=debug info warn error"`
	Console bool   `koanf:"console"`
}

//
// Root aggregate
//

// Settings is the aggregate returned by Resolve.
type Settings struct {
	Environment Environment         `koanf:"-"`
	Application ApplicationSettings `koanf:"application"`
	Database    DatabaseSettings    `koanf:"database"`
	Log         LogSettings         `koanf:"log"`
}

// defaults seeds the koanf tree before any file is read.  Only optional
// tunables live here; required fields must come from a real source.
func defaults() map[string]any {
	return map[string]any{
		"database.max_open_conns":    10,
		"database.max_idle_conns":    5,
		"database.acquire_timeout":   "2s",
		"database.conn_max_lifetime": "30m",
		"log.dir":                    "logs",
		"log.level":                  "info",
	}
}

// requiredKeys must be present after all layers merge.  Their zero values
// can be legitimate, so presence is checked on the tree, not the struct.
var requiredKeys = []string{
	"application.host",
	"application.port",
	"database.username",
	"database.password",
	"database.host",
	"database.port",
	"database.db_name",
	"database.ssl_mode",
}

// Isolated returns a copy of s whose database name and application port are
// replaced.  The receiver is not modified.  Test harnesses use this to point
// each server instance at its own throwaway database and port.
func (s Settings) Isolated(dbName string, port uint16) Settings {
	out := s
	out.Application.AllowedOrigins = append([]string(nil), s.Application.AllowedOrigins...)
	out.Database.DBName = dbName
	out.Application.Port = port
	return out
}
