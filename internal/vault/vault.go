// internal/vault/vault.go
//
// Vault client wrapper.
//
// Context
// -------
//   - Resolves `vault:<mount>/<path>#<key>` references found in configuration
//     (see config.SecretSource).  Only KV-v2 secrets are supported.
//   - Adds background token renewal and per-reference caching.
//   - Oxford commas, two spaces after periods, no m-dash.
//
// Public workflow
// ---------------
//  1. cli, err := vault.New(ctx, log)                       // during boot.
//  2. cfg, err := config.ResolveFromEnv(ctx, dir, config.WithSecrets(cli))
//
// Environment expectations
// ------------------------
// • VAULT_ADDR   – scheme and host of the Vault server.
// • VAULT_TOKEN  – initial token.
package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"

	"github.com/yanizio/mailroom/internal/cache"
)

// DefaultTTL is how long a resolved secret is served from cache.
const DefaultTTL = 5 * time.Minute

const cacheSize = 256

//
// SECTION 1.  Public façade
//

// Client is safe for concurrent use.  Zero value is invalid.
type Client struct {
	api   *vault.Client
	log   *zap.Logger
	cache *cache.LRU[string, string] // path#key → value.
}

// New builds a client from VAULT_* environment variables and starts token
// renewal, which stops when ctx ends.
func New(ctx context.Context, log *zap.Logger) (*Client, error) {
	cfg := vault.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault env cfg: %w", err)
	}

	c, err := newClient(cfg, log)
	if err != nil {
		return nil, err
	}
	go c.renewLoop(ctx)
	return c, nil
}

func newClient(cfg *vault.Config, log *zap.Logger) (*Client, error) {
	apiCli, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault api: %w", err)
	}
	return &Client{
		api:   apiCli,
		log:   log,
		cache: cache.New[string, string](cacheSize, DefaultTTL),
	}, nil
}

// Secret resolves ref of the form "<mount>/<path>#<key>".
func (c *Client) Secret(ctx context.Context, ref string) (string, error) {
	path, key, ok := strings.Cut(ref, "#")
	if !ok {
		return "", fmt.Errorf("vault reference %q: want <mount>/<path>#<key>", ref)
	}
	return c.GetKV(ctx, path, key)
}

// GetKV fetches a single key from a KV-v2 secret, serving repeat lookups
// from cache for DefaultTTL.
func (c *Client) GetKV(ctx context.Context, secretPath, key string) (string, error) {
	if secretPath == "" || key == "" {
		return "", errors.New("secret path and key must be non-empty")
	}

	canonical := secretPath + "#" + key

	if v, ok := c.cache.Get(canonical); ok {
		return v, nil
	}

	mount, rel := splitMount(secretPath)
	sec, err := c.api.KVv2(mount).Get(ctx, rel)
	if err != nil {
		return "", fmt.Errorf("vault get %s: %w", secretPath, err)
	}

	raw, ok := sec.Data[key]
	if !ok {
		return "", fmt.Errorf("key %q not found in secret %q", key, secretPath)
	}
	sval, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("value at %s#%s is not a string", secretPath, key)
	}

	c.cache.Add(canonical, sval)

	return sval, nil
}

//
// SECTION 2.  Background token renewal
//

func (c *Client) renewLoop(ctx context.Context) {
	for {
		sec, err := c.api.Auth().Token().RenewSelfWithContext(ctx, 0)
		if err != nil {
			c.log.Warn("vault token renew failed", zap.Error(err))
			if !sleep(ctx, 30*time.Second) {
				return
			}
			continue
		}
		if sec == nil || sec.Auth == nil || !sec.Auth.Renewable {
			c.log.Info("vault token is not renewable")
			return
		}

		watcher, err := c.api.NewLifetimeWatcher(&vault.LifetimeWatcherInput{Secret: sec})
		if err != nil {
			c.log.Warn("vault lifetime watcher init failed", zap.Error(err))
			if !sleep(ctx, 30*time.Second) {
				return
			}
			continue
		}
		go watcher.Start()

		if !c.watch(ctx, watcher) {
			return
		}
		if !sleep(ctx, 15*time.Second) {
			return
		}
	}
}

// watch logs renewals until the watcher stops.  It reports false once ctx
// has ended.
func (c *Client) watch(ctx context.Context, w *vault.LifetimeWatcher) bool {
	defer w.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case err := <-w.DoneCh():
			if err != nil {
				c.log.Warn("vault token renewal stopped", zap.Error(err))
			}
			return true
		case ev := <-w.RenewCh():
			if ev != nil && ev.Secret != nil && ev.Secret.Auth != nil {
				c.log.Debug("vault token renewed", zap.Int("ttl_s", ev.Secret.Auth.LeaseDuration))
			}
		}
	}
}

//
// SECTION 3.  Helpers
//

func splitMount(p string) (mount, rel string) {
	mount, rel, _ = strings.Cut(strings.Trim(p, "/"), "/")
	return mount, rel
}

// sleep waits d or until ctx ends, reporting whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
