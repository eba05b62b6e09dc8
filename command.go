package caddymiabrelay

import (
	"fmt"
	"os"

	"github.com/caddyserver/caddy/v2"
	caddycmd "github.com/caddyserver/caddy/v2/cmd"
	"github.com/liujed/caddy-miabrelay/flags"
	"github.com/spf13/cobra"
)

func init() {
	caddycmd.RegisterCommand(caddycmd.Command{
		Name:  "miabrelay",
		Usage: "[--config <path>] [--listen <addr>]",
		Short: "Starts a relay that answers DNS-01 challenges through Mail-in-a-Box",
		Long: `
miabrelay is a server for answering ACME DNS-01 challenges with the custom DNS
API of a Mail-in-a-Box server, without handing the box's administrator
credentials to every host that needs a certificate.

Clients POST {"fqdn", "value", "type"} to /present, /cleanup or /sync using
HTTP basic authentication. The relay moves the name into the box's domain and
forwards the request to /admin/dns/custom on the box.

Without --config, the relay is configured from the environment:
  PORT         listen port (default 3000)
  AUTH_USER    username clients must present
  AUTH_PASS    password clients must present
  MIAB_URL     base URL of the box
  MIAB_USER    box administrator username
  MIAB_PASS    box administrator password
  MIAB_DOMAIN  domain the box is authoritative for

Designed to work with:
  * acme.sh's 'acmeproxy' provider,
  * Caddy's 'acmeproxy' DNS provider module, and
  * lego's 'httpreq' DNS provider.`,
		CobraFunc: func(cmd *cobra.Command) {
			configPath := flags.AddStringFlag(cmd, flags.Flag[string]{
				Name:         "config",
				ShortName:    'c',
				UsageMsg:     "Configuration file (JSON, or TOML with a .toml extension)",
				FilenameExts: []string{"json", "toml"},
			})
			listen := flags.AddStringSliceFlag(cmd, flags.Flag[[]string]{
				Name:     "listen",
				UsageMsg: "Socket to listen on, overriding the configuration",
			})

			cmd.RunE = func(*cobra.Command, []string) error {
				return runRelay(*configPath, *listen)
			}

			cmd.AddCommand(&cobra.Command{
				Use:   "version",
				Short: "Print version information",
				Run: func(*cobra.Command, []string) {
					fmt.Println(Release())
				},
			})
		},
	})
}

// Loads the configuration once, starts Caddy with it, and blocks.
func runRelay(configPath string, listen []string) error {
	config, err := loadConfig(configPath, os.LookupEnv)
	if err != nil {
		return err
	}
	if len(listen) > 0 {
		config.Listen = listen
	}

	err = caddy.Run(caddyConfig(config))
	if err != nil {
		return fmt.Errorf("unable to start relay: %w", err)
	}

	select {}
}

// Reads the configuration from configPath, or from the environment if
// configPath is empty.
func loadConfig(
	configPath string,
	lookupEnv func(string) (string, bool),
) (*ConfigFile, error) {
	if configPath == "" {
		config, err := configFromEnv(lookupEnv)
		if err != nil {
			return nil, fmt.Errorf("unable to configure from environment: %w", err)
		}
		return config, nil
	}

	config, err := configFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read configuration: %w", err)
	}
	return config, nil
}
