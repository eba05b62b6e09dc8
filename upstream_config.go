package caddymiabrelay

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/caddyserver/caddy/v2"
	"github.com/liujed/caddy-miabrelay/mailinabox"
)

// Where and how to reach the Mail-in-a-Box administration API.
type UpstreamConfig struct {
	// Base URL of the box, e.g. "https://box.example.com".
	URL string `json:"url"`

	// Credentials of an administrator account on the box.
	Username string `json:"username"`
	Password string `json:"password"`

	// Timeout for each upstream call. Zero means no timeout.
	Timeout caddy.Duration `json:"timeout,omitempty"`

	Client *mailinabox.Client `json:"-"`
}

func (u *UpstreamConfig) Provision(ctx caddy.Context) error {
	repl := caddy.NewReplacer()
	u.URL = repl.ReplaceAll(u.URL, "")
	u.Username = repl.ReplaceAll(u.Username, "")
	u.Password = repl.ReplaceAll(u.Password, "")

	if u.URL == "" {
		return fmt.Errorf("must configure an upstream URL")
	}
	parsed, err := url.Parse(u.URL)
	if err != nil {
		return fmt.Errorf("invalid upstream URL %q: %w", u.URL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("upstream URL %q must use http or https", u.URL)
	}
	if u.Username == "" || u.Password == "" {
		return fmt.Errorf("must configure upstream credentials")
	}

	u.Client = mailinabox.NewClient(
		u.URL,
		u.Username,
		u.Password,
		&http.Client{Timeout: time.Duration(u.Timeout)},
	)
	return nil
}
