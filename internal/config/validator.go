// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `loader.go` calls `validateStruct` immediately after it decodes the merged
// Koanf tree into Settings.  Any rule violation aborts startup, so the
// binary never runs with partial or malformed configuration.
//
// Rules live in struct tags on `model.go`.  The only cross-field rule is
// that idle connections cannot outnumber open ones.

package config

import (
	"github.com/go-playground/validator/v10"
)

//
// validator instance (package-level singleton)
//

var v = func() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterStructValidation(poolRule, DatabaseSettings{})
	return val
}()

//
// public API
//

// validateStruct returns the validation errors, or nil on success.
func validateStruct(s *Settings) error {
	return v.Struct(s)
}

// poolRule rejects max_idle_conns > max_open_conns when both are set.
func poolRule(sl validator.StructLevel) {
	db := sl.Current().Interface().(DatabaseSettings)
	if db.MaxOpenConns > 0 && db.MaxIdleConns > db.MaxOpenConns {
		sl.ReportError(db.MaxIdleConns, "MaxIdleConns", "max_idle_conns", "ltefield", "MaxOpenConns")
	}
}
