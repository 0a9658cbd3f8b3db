// internal/config/decode.go
//
// mapstructure hooks used when the merged Koanf tree is decoded.
//
// Overlay values always arrive as strings, so weak typing is on.  Weak
// typing alone would silently wrap an out-of-range integer into a uint16,
// so port fields go through uint16Hook first and fail instead.

package config

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

func decoderConfig(out *Settings) *mapstructure.DecoderConfig {
	return &mapstructure.DecoderConfig{
		TagName:          "koanf",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			uint16Hook,
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	}
}

// uint16Hook converts strings, integers, and integral floats into uint16,
// rejecting anything that does not fit in 16 bits.
func uint16Hook(from, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.Uint16 {
		return data, nil
	}

	v := reflect.ValueOf(data)
	switch from.Kind() {
	case reflect.String:
		n, err := strconv.ParseUint(strings.TrimSpace(v.String()), 10, 16)
		if err != nil {
			return nil, fmt.Errorf("%q is not a 16-bit unsigned integer", v.String())
		}
		return uint16(n), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := v.Int()
		if n < 0 || n > math.MaxUint16 {
			return nil, fmt.Errorf("%d is out of range for a 16-bit unsigned integer", n)
		}
		return uint16(n), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n := v.Uint()
		if n > math.MaxUint16 {
			return nil, fmt.Errorf("%d is out of range for a 16-bit unsigned integer", n)
		}
		return uint16(n), nil

	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if f != math.Trunc(f) || f < 0 || f > math.MaxUint16 {
			return nil, fmt.Errorf("%v is not a 16-bit unsigned integer", f)
		}
		return uint16(f), nil
	}
	return data, nil
}
