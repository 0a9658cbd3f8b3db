// internal/config/loader.go
//
// Configuration resolver.
//
/*
Context
--------
`Resolve()` builds one Settings value from an ordered list of layers
(highest precedence last):

  1. Built-in defaults for optional tunables (pool sizes, timeouts, log).
  2. `<dir>/config.<environment>.yml`, chosen by the profile string.
  3. Environment variables prefixed `APP_`, where `__` maps to “.”
     (e.g., `APP_DATABASE__PASSWORD → database.password`).

Each layer only overrides the keys it actually provides.  After merging,
any `vault:` reference is swapped for its secret, the tree is decoded into
strongly-typed structs with numeric-from-string coercion, and validated.

Instrumentation
---------------
  • DEBUG spans: profile, YAML read, env overlay.
  • ERROR spans: every failure stage, tagged with its Kind.
  • INFO  span:  final “config loaded” with key highlights, never secrets.

Notes
-----
  • An unknown profile fails before any file is touched.
  • Nothing is cached or reloaded; callers own the returned value.
*/
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"
)

const (
	// EnvPrefix marks variables that override file values.
	EnvPrefix = "APP_"
	// EnvDelimiter separates nesting levels inside an overlay key.
	EnvDelimiter = "__"
)

/*─────────────────────────────── options ──────────────────────────────────*/

// Option tunes Resolve.
type Option func(*options)

type options struct {
	log     *zap.SugaredLogger
	secrets SecretSource
}

// WithLogger routes resolver events to l instead of the global zap logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l.Sugar() }
}

// WithSecrets enables `vault:` references in any string value.
func WithSecrets(s SecretSource) Option {
	return func(o *options) { o.secrets = s }
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// ResolveFromEnv reads the profile from APP_ENVIRONMENT and calls Resolve.
func ResolveFromEnv(ctx context.Context, dir string, opts ...Option) (*Settings, error) {
	return Resolve(ctx, os.Getenv(EnvVar), dir, opts...)
}

// Resolve loads `<dir>/config.<profile>.yml`, overlays APP_ variables, and
// returns validated Settings.  An empty profile selects development.
func Resolve(ctx context.Context, profile, dir string, opts ...Option) (*Settings, error) {
	o := options{log: zap.S()}
	for _, fn := range opts {
		fn(&o)
	}
	log := o.log

	envName, err := ParseEnvironment(profile)
	if err != nil {
		return nil, fail(log, KindProfile, "", err)
	}
	log.Debugw("config profile selected", "environment", envName.String())

	k := koanf.New(".")

	// Layer 1: defaults.
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fail(log, KindDecode, "defaults", err)
	}

	// Layer 2: profile file.  Read and parse separately so the two failure
	// modes stay distinguishable.
	path := filepath.Join(dir, envName.FileName())
	raw, err := file.Provider(path).ReadBytes()
	if err != nil {
		return nil, fail(log, KindRead, path, err)
	}
	tree, err := yaml.Parser().Unmarshal(raw)
	if err != nil {
		return nil, fail(log, KindParse, path, err)
	}
	if err := k.Load(confmap.Provider(tree, ""), nil); err != nil {
		return nil, fail(log, KindParse, path, err)
	}
	log.Debugw("config yaml loaded", "file", path)

	// Layer 3: env overlay.  APP_DATABASE__PASSWORD → database.password.
	if err := k.Load(env.Provider(EnvPrefix, ".", overlayKey), nil); err != nil {
		return nil, fail(log, KindDecode, "env", err)
	}
	log.Debugw("config env overlay applied", "prefix", EnvPrefix)

	if err := resolveSecrets(ctx, k, o.secrets); err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			log.Errorw("config load failed", "stage", ce.Kind.String(), "key", ce.Path, "err", ce.Err)
			return nil, ce
		}
		return nil, fail(log, KindSecret, "", err)
	}

	// A key that no layer provided is a decode failure even when its zero
	// value would pass validation (port 0, ssl_mode false).
	for _, key := range requiredKeys {
		if !k.Exists(key) {
			return nil, fail(log, KindDecode, path, fmt.Errorf("missing required setting %q", key))
		}
	}

	var s Settings
	if err := k.UnmarshalWithConf("", &s, koanf.UnmarshalConf{
		Tag:           "koanf",
		DecoderConfig: decoderConfig(&s),
	}); err != nil {
		return nil, fail(log, KindDecode, path, err)
	}
	s.Environment = envName

	if err := validateStruct(&s); err != nil {
		return nil, fail(log, KindValidate, path, err)
	}

	log.Infow("config loaded",
		"environment", envName.String(),
		"listen_addr", s.Application.Address(),
		"db_host", s.Database.Host,
		"db_name", s.Database.DBName,
		"ssl_mode", s.Database.SSLMode,
	)
	return &s, nil
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

// overlayKey maps APP_DATABASE__DB_NAME to database.db_name.
func overlayKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ToLower(strings.ReplaceAll(s, EnvDelimiter, "."))
}

func fail(log *zap.SugaredLogger, kind Kind, path string, err error) error {
	log.Errorw("config load failed", "stage", kind.String(), "file", path, "err", err)
	return &Error{Kind: kind, Path: path, Err: err}
}
