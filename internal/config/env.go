package config

import (
	"strings"

	"github.com/caarlos0/env/v11"
)

// ApplyEnvOverrides resolves ROBUN_-prefixed environment variables onto cfg.
// Nested sections use "__" as the path separator (e.g. ROBUN_AGENTS__MODEL),
// implemented via caarlos0/env's per-field envPrefix tags. The two map-typed
// sections (Providers.Providers, Channels) key on a dynamic provider/channel
// name that can't be expressed as a static struct tag, so they're resolved
// by a small manual walk of the same "__"-separated variables instead.
func ApplyEnvOverrides(cfg *Config, prefix string, environ []string) error {
	if err := env.ParseWithOptions(cfg, env.Options{
		Prefix:      prefix + "_",
		Environment: envMap(environ),
	}); err != nil {
		return err
	}
	applyDynamicOverrides(cfg, prefix+"_", environ)
	return nil
}

func envMap(environ []string) map[string]string {
	m := make(map[string]string, len(environ))
	for _, kv := range environ {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	return m
}

// applyDynamicOverrides handles ROBUN_PROVIDERS__{name}__API_KEY and
// ROBUN_CHANNELS__{name}__ENABLED style variables, whose middle segment
// names a map key rather than a fixed struct field.
func applyDynamicOverrides(cfg *Config, prefix string, environ []string) {
	for _, kv := range environ {
		i := strings.IndexByte(kv, '=')
		if i < 0 {
			continue
		}
		key, val := kv[:i], kv[i+1:]
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		parts := strings.Split(strings.TrimPrefix(key, prefix), "__")
		switch {
		case len(parts) == 3 && parts[0] == "PROVIDERS":
			name := strings.ToLower(parts[1])
			creds := cfg.Providers.Providers[name]
			switch parts[2] {
			case "API_KEY":
				creds.APIKey = val
			case "API_BASE":
				creds.APIBase = val
			}
			if cfg.Providers.Providers == nil {
				cfg.Providers.Providers = map[string]ProviderCreds{}
			}
			cfg.Providers.Providers[name] = creds
		case len(parts) == 3 && parts[0] == "CHANNELS":
			name := strings.ToLower(parts[1])
			ch := cfg.Channels[name]
			switch parts[2] {
			case "ENABLED":
				ch.Enabled = val == "true" || val == "1"
			}
			if cfg.Channels == nil {
				cfg.Channels = ChannelsConfig{}
			}
			cfg.Channels[name] = ch
		}
	}
}
