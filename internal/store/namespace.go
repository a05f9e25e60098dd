package store

import (
	"fmt"

	"github.com/mmcdole/marquee/internal/config"
	"github.com/mmcdole/marquee/internal/domain"
)

// Namespace scopes a KV to one user: keys become "user:<id>:<key>".
// Closing a Namespace does not close the underlying store.
type Namespace struct {
	kv     domain.KV
	prefix string
}

// ForUser returns the namespace for userID
func ForUser(kv domain.KV, userID string) *Namespace {
	return &Namespace{kv: kv, prefix: "user:" + userID + ":"}
}

func (n *Namespace) Get(key string) ([]byte, bool, error) { return n.kv.Get(n.prefix + key) }
func (n *Namespace) Set(key string, value []byte) error   { return n.kv.Set(n.prefix+key, value) }
func (n *Namespace) Delete(key string) error              { return n.kv.Delete(n.prefix + key) }
func (n *Namespace) Close() error                         { return nil }

// Open builds the configured backend
func Open(cfg config.StorageConfig, serverURL string) (domain.KV, error) {
	switch cfg.Backend {
	case "", "bolt":
		return NewBoltStore(cfg.Path, serverURL, cfg.QuotaBytes)
	case "memory":
		return NewMemoryStore(cfg.QuotaBytes), nil
	case "redis":
		return NewRedisStore(cfg.RedisURL, "marquee:", cfg.QuotaBytes)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
