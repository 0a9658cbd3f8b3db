package config

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/knadh/koanf/providers/confmap"
	koanf "github.com/knadh/koanf/v2"
)

// SecretPrefix marks a string value that must be fetched from a
// SecretSource, e.g. `vault:secret/mailroom/db#password`.
const SecretPrefix = "vault:"

// SecretSource resolves the reference that follows SecretPrefix.
// internal/vault.Client satisfies it.
type SecretSource interface {
	Secret(ctx context.Context, ref string) (string, error)
}

// resolveSecrets replaces every vault: value in k.  Keys are visited in
// sorted order so failures are reported deterministically.
func resolveSecrets(ctx context.Context, k *koanf.Koanf, src SecretSource) error {
	flat := k.All()
	keys := make([]string, 0)
	for key, val := range flat {
		if s, ok := val.(string); ok && strings.HasPrefix(s, SecretPrefix) {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)
	if src == nil {
		return &Error{Kind: KindSecret, Path: keys[0], Err: errors.New("vault reference found but no secret source configured")}
	}

	resolved := make(map[string]any, len(keys))
	for _, key := range keys {
		ref := strings.TrimPrefix(flat[key].(string), SecretPrefix)
		val, err := src.Secret(ctx, ref)
		if err != nil {
			return &Error{Kind: KindSecret, Path: key, Err: err}
		}
		resolved[key] = val
	}
	return k.Load(confmap.Provider(resolved, "."), nil)
}
