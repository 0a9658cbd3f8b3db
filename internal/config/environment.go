// internal/config/environment.go
//
// Deployment profile selection.
//
// The profile only decides which base YAML file is read.  The `APP_`
// environment overlay is applied on top of every profile.

package config

import (
	"errors"
	"fmt"
	"strings"
)

// Environment is the closed set of deployment profiles.
type Environment int

const (
	Development Environment = iota
	Test
	Production
)

// EnvVar names the variable that selects the profile.
const EnvVar = "APP_ENVIRONMENT"

// ErrUnknownEnvironment is wrapped by ParseEnvironment for any value outside
// development, test, and production.
var ErrUnknownEnvironment = errors.New("unknown environment")

// ParseEnvironment parses s case-insensitively.  Surrounding whitespace is
// ignored.  An empty string selects Development.
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "development":
		return Development, nil
	case "test":
		return Test, nil
	case "production":
		return Production, nil
	default:
		return Development, fmt.Errorf("%w %q (want development, test, or production)",
			ErrUnknownEnvironment, s)
	}
}

func (e Environment) String() string {
	switch e {
	case Development:
		return "development"
	case Test:
		return "test"
	case Production:
		return "production"
	default:
		return fmt.Sprintf("Environment(%d)", int(e))
	}
}

// FileName returns the base document for the profile, e.g. config.test.yml.
func (e Environment) FileName() string {
	return "config." + e.String() + ".yml"
}
