package config

import "fmt"

// Kind classifies a resolution failure by the stage that produced it.
type Kind int

const (
	KindProfile  Kind = iota + 1 // profile string is not a known Environment
	KindRead                     // base file missing or unreadable
	KindParse                    // base file is not valid YAML
	KindSecret                   // a vault: reference could not be resolved
	KindDecode                   // merged tree does not fit Settings
	KindValidate                 // decoded Settings break a field rule
)

func (k Kind) String() string {
	switch k {
	case KindProfile:
		return "profile"
	case KindRead:
		return "read"
	case KindParse:
		return "parse"
	case KindSecret:
		return "secret"
	case KindDecode:
		return "decode"
	case KindValidate:
		return "validate"
	default:
		return "unknown"
	}
}

// Error is returned by Resolve.  Every Kind is fatal to startup.
type Error struct {
	Kind Kind
	Path string // file or key involved, may be empty
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("config %s %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
