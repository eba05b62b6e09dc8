package caddymiabrelay

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/caddyserver/caddy/v2"
	"github.com/caddyserver/caddy/v2/caddyconfig/caddyfile"
	"github.com/caddyserver/caddy/v2/caddyconfig/httpcaddyfile"
	"github.com/caddyserver/caddy/v2/modules/caddyhttp"
	"go.uber.org/zap"
)

func init() {
	caddy.RegisterModule(Handler{})
	httpcaddyfile.RegisterHandlerDirective("miabrelay", parseHandler)
	httpcaddyfile.RegisterDirectiveOrder(
		"miabrelay",
		httpcaddyfile.After,
		"acme_server",
	)
}

// Relays ACME DNS-01 challenge requests to the custom DNS API of a
// Mail-in-a-Box server.
//
// Serves POST /present, /cleanup and /sync. Every other path goes to the next
// handler, after authentication.
//
// This is a Caddy `http.handlers` module.
type Handler struct {
	// The DNS zone the box is authoritative for. Challenge names outside it
	// are moved into it.
	Domain string `json:"domain"`

	Upstream UpstreamConfig `json:"upstream"`

	// Users allowed to call the relay, and optionally the domains at which
	// each may answer challenges.
	//
	// (During provisioning, this is used to fill in [ClientRegistry].)
	AccountsRaw []RawAccount `json:"accounts"`

	// If set, /sync requests only need an fqdn. Otherwise /sync is validated
	// like the other routes and also needs a value, even though the value is
	// never sent upstream.
	RelaxSyncValidation bool `json:"relax_sync_validation,omitempty"`

	// Derived from [AccountsRaw].
	ClientRegistry ClientRegistry `json:"-"`

	logger *zap.Logger
}

var _ caddy.Module = (*Handler)(nil)
var _ caddy.Provisioner = (*Handler)(nil)
var _ caddyhttp.MiddlewareHandler = (*Handler)(nil)
var _ caddyfile.Unmarshaler = (*Handler)(nil)

func (Handler) CaddyModule() caddy.ModuleInfo {
	return caddy.ModuleInfo{
		ID: "http.handlers.miabrelay",
		New: func() caddy.Module {
			return new(Handler)
		},
	}
}

func (h *Handler) Provision(ctx caddy.Context) error {
	h.logger = ctx.Logger()

	repl := caddy.NewReplacer()
	h.Domain = strings.Trim(repl.ReplaceAll(h.Domain, ""), ".")
	if h.Domain == "" {
		return fmt.Errorf("must configure the managed domain")
	}

	err := h.Upstream.Provision(ctx)
	if err != nil {
		return fmt.Errorf("unable to provision upstream: %w", err)
	}

	err = h.ClientRegistry.Provision(ctx, h.AccountsRaw)
	if err != nil {
		return fmt.Errorf("unable to provision client registry: %w", err)
	}

	// Allow AccountsRaw to be GC'd.
	h.AccountsRaw = nil

	return nil
}

func (h *Handler) ServeHTTP(
	w http.ResponseWriter,
	req *http.Request,
	nextHandler caddyhttp.Handler,
) error {
	sw := newStatusWriter(w)
	ex := &exchange{req: req, w: sw}
	defer func() {
		h.logRequest(ex, sw.status)
	}()

	for _, st := range h.stages() {
		r, err := st(ex)
		if errors.Is(err, errPassThrough) {
			err = nextHandler.ServeHTTP(sw, req)
			var handlerErr caddyhttp.HandlerError
			if sw.status == 0 && errors.As(err, &handlerErr) {
				sw.status = handlerErr.StatusCode
			}
			return err
		}
		if err != nil {
			// Details stay in the server log.
			h.logger.Error(
				"unable to handle request",
				zap.String("path", req.URL.Path),
				zap.Error(err),
			)
			r = textReply(
				http.StatusInternalServerError,
				http.StatusText(http.StatusInternalServerError),
			)
		}
		if r != nil {
			return r.write(sw)
		}
	}

	return fmt.Errorf("no stage produced a response for %s", req.URL.Path)
}

// Parses a miabrelay directive into a Handler instance.
//
// Syntax:
//
//	miabrelay {
//		domain <domain>
//		upstream <url> {
//			username <username>
//			password <password>
//			timeout <duration>
//		}
//		user <userID> {
//			password <password> | password_hash <bcrypt_hash>
//			allow_domains <domains...>
//			deny_domains <domains...>
//		}
//		relax_sync_validation
//	}
func (h *Handler) UnmarshalCaddyfile(d *caddyfile.Dispenser) error {
	// Consume directive name.
	d.Next()

	// No inline arguments allowed.
	if d.NextArg() {
		return d.ArgErr()
	}

	for nesting := d.Nesting(); d.NextBlock(nesting); {
		switch d.Val() {
		case "domain":
			if !d.AllArgs(&h.Domain) {
				return d.ArgErr()
			}

		case "upstream":
			if !d.NextArg() {
				return d.ArgErr()
			}
			h.Upstream.URL = d.Val()
			if d.NextArg() {
				return d.ArgErr()
			}

			for nesting := d.Nesting(); d.NextBlock(nesting); {
				fieldName := d.Val()
				switch fieldName {
				case "username":
					if !d.AllArgs(&h.Upstream.Username) {
						return d.ArgErr()
					}

				case "password":
					if !d.AllArgs(&h.Upstream.Password) {
						return d.ArgErr()
					}

				case "timeout":
					var timeout string
					if !d.AllArgs(&timeout) {
						return d.ArgErr()
					}
					parsed, err := caddy.ParseDuration(timeout)
					if err != nil {
						return d.Errf("invalid upstream timeout %q: %v", timeout, err)
					}
					h.Upstream.Timeout = caddy.Duration(parsed)

				default:
					return d.Errf("unrecognized upstream directive: %q", fieldName)
				}
			}

		case "user":
			var userID string
			if !d.AllArgs(&userID) {
				return d.ArgErr()
			}

			account := RawAccount{
				ClientPolicy: ClientPolicy{
					UserID: userID,
				},
			}

			// Parse the client declaration.
			for nesting := d.Nesting(); d.NextBlock(nesting); {
				var curDomainsRaw *[]string

				fieldName := d.Val()
				switch fieldName {
				case "password", "password_hash":
					if account.Password != "" || account.PasswordHash != "" {
						return d.Errf("cannot specify more than one password per user")
					}
					target := &account.Password
					if fieldName == "password_hash" {
						target = &account.PasswordHash
					}
					if !d.AllArgs(target) {
						return d.ArgErr()
					}
					continue

				case "allow_domains":
					curDomainsRaw = &account.AllowDomainsRaw

				case "deny_domains":
					curDomainsRaw = &account.DenyDomainsRaw

				default:
					return d.Errf("unrecognized user directive: %q", fieldName)
				}

				if *curDomainsRaw != nil {
					return d.Errf(
						"cannot specify more than one %q policy per user",
						fieldName,
					)
				}

				domainList := d.RemainingArgs()
				if len(domainList) == 0 {
					return d.Errf("must specify at least one domain")
				}

				*curDomainsRaw = domainList
			}

			// Register the account.
			h.AccountsRaw = append(h.AccountsRaw, account)

		case "relax_sync_validation":
			if d.NextArg() {
				return d.ArgErr()
			}
			h.RelaxSyncValidation = true

		default:
			return d.Errf("unrecognized miabrelay handler directive: %q", d.Val())
		}
	}

	return nil
}

// Unmarshals tokens from h into a new Handler instance that is ready for
// provisioning.
func parseHandler(
	h httpcaddyfile.Helper,
) (caddyhttp.MiddlewareHandler, error) {
	var result Handler
	err := result.UnmarshalCaddyfile(h.Dispenser)
	return &result, err
}
