package caddymiabrelay

import (
	"fmt"
	"strings"

	"github.com/caddyserver/caddy/v2"
	"github.com/caddyserver/caddy/v2/caddyconfig"
	"github.com/liujed/caddy-miabrelay/jsonutil"
)

// A miabrelay configuration file is the same as the app configuration.
type ConfigFile = App

const defaultListen = "127.0.0.1:9095"

// Port used when configuring from the environment without PORT.
const defaultEnvPort = "3000"

// Environment variables read by configFromEnv.
const (
	envPort       = "PORT"
	envAuthUser   = "AUTH_USER"
	envAuthPass   = "AUTH_PASS"
	envUpstream   = "MIAB_URL"
	envUpstreamUs = "MIAB_USER"
	envUpstreamPw = "MIAB_PASS"
	envDomain     = "MIAB_DOMAIN"
)

// Reads a miabrelay configuration file (JSON, or TOML with a .toml extension).
func configFromFile(path string) (*ConfigFile, error) {
	config, err := jsonutil.UnmarshalFromFile[ConfigFile](path)
	if err != nil {
		return nil, err
	}

	// Set default listen sockets.
	if len(config.Listen) == 0 {
		config.Listen = []string{defaultListen}
	}
	return &config, nil
}

// Builds a configuration from environment variables, looked up with lookup
// (normally os.LookupEnv). All variables except PORT are required; every
// missing one is reported. Settings refer to the variables through {env.*}
// placeholders, so secrets are expanded once during provisioning and never
// copied into the configuration itself.
func configFromEnv(lookup func(string) (string, bool)) (*ConfigFile, error) {
	var missing []string
	placeholder := func(key string) string {
		value, ok := lookup(key)
		if !ok || value == "" {
			missing = append(missing, key)
		}
		return "{env." + key + "}"
	}

	config := &ConfigFile{
		Handler: Handler{
			Domain: placeholder(envDomain),
			Upstream: UpstreamConfig{
				URL:      placeholder(envUpstream),
				Username: placeholder(envUpstreamUs),
				Password: placeholder(envUpstreamPw),
			},
			AccountsRaw: []RawAccount{
				{
					ClientPolicy: ClientPolicy{UserID: placeholder(envAuthUser)},
					Password:     placeholder(envAuthPass),
				},
			},
		},
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf(
			"missing environment variables: %s",
			strings.Join(missing, ", "),
		)
	}

	port, ok := lookup(envPort)
	if !ok || port == "" {
		port = defaultEnvPort
	}
	config.Listen = []string{":" + port}

	return config, nil
}

// Wraps the app configuration in a Caddy configuration with the admin
// endpoint disabled.
func caddyConfig(config *ConfigFile) *caddy.Config {
	persist := false
	return &caddy.Config{
		Admin: &caddy.AdminConfig{
			Disabled: true,
			Config: &caddy.ConfigSettings{
				Persist: &persist,
			},
		},
		AppsRaw: caddy.ModuleMap{
			"miabrelay": caddyconfig.JSON(config, nil),
		},
	}
}
