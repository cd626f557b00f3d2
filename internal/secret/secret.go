// Package secret resolves named credentials (provider API keys and secrets)
// from the process environment. Provider rows only ever store the name.
package secret

import (
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/fx"
)

type Resolver interface {
	// Lookup returns the value stored under name. Blank values count as missing.
	Lookup(name string) (string, bool)
}

type envResolver struct {
	v *viper.Viper
}

func NewEnvResolver() Resolver {
	v := viper.New()
	v.AutomaticEnv()
	return &envResolver{v: v}
}

func (r *envResolver) Lookup(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	value := strings.TrimSpace(r.v.GetString(name))
	if value == "" {
		return "", false
	}
	return value, true
}

// MapResolver is a fixed in-memory resolver.
type MapResolver map[string]string

func (m MapResolver) Lookup(name string) (string, bool) {
	value, ok := m[strings.TrimSpace(name)]
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return strings.TrimSpace(value), true
}

var Module = fx.Module("secret",
	fx.Provide(NewEnvResolver),
)
