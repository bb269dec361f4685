package kv

import (
	"context"
	"strings"

	"github.com/arhteh596/granovskicrm-sub002/internal/domain"
)

// Namespaced scopes every key of an underlying KV under a fixed prefix.
type Namespaced struct {
	base   domain.KV
	prefix string
}

// Namespace returns a view of base where every key is prefixed.
func Namespace(base domain.KV, prefix string) *Namespaced {
	return &Namespaced{base: base, prefix: prefix}
}

// UserNamespace is the prefix used for one CRM user's keys.
func UserNamespace(userID string) string {
	return "user:" + userID + ":"
}

func (n *Namespaced) Get(ctx context.Context, key string) (string, bool, error) {
	return n.base.Get(ctx, n.prefix+key)
}

func (n *Namespaced) Set(ctx context.Context, key, value string) error {
	return n.base.Set(ctx, n.prefix+key, value)
}

func (n *Namespaced) Delete(ctx context.Context, key string) error {
	return n.base.Delete(ctx, n.prefix+key)
}

func (n *Namespaced) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := n.base.Keys(ctx, n.prefix+prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, n.prefix))
	}
	return out, nil
}
