package mailinabox

import (
	"context"
	"fmt"
	"strings"

	"github.com/caddyserver/caddy/v2"
	"github.com/caddyserver/caddy/v2/caddyconfig/caddyfile"
	"github.com/caddyserver/certmagic"
	"github.com/libdns/libdns"
)

func init() {
	caddy.RegisterModule(Provider{})
}

// A libdns provider backed by the Mail-in-a-Box custom DNS API.
//
// This is a Caddy `dns.providers` module, so the same box can also answer
// Caddy's own DNS-01 challenges.
type Provider struct {
	// Base URL of the box, e.g. "https://box.example.com".
	APIURL string `json:"api_url,omitempty"`

	// Credentials of an administrator account on the box.
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

var _ caddy.Module = (*Provider)(nil)
var _ caddy.Provisioner = (*Provider)(nil)
var _ caddyfile.Unmarshaler = (*Provider)(nil)
var _ certmagic.DNSProvider = (*Provider)(nil)

var (
	_ libdns.RecordGetter   = (*Provider)(nil)
	_ libdns.RecordAppender = (*Provider)(nil)
	_ libdns.RecordDeleter  = (*Provider)(nil)
)

func (Provider) CaddyModule() caddy.ModuleInfo {
	return caddy.ModuleInfo{
		ID: "dns.providers.mailinabox",
		New: func() caddy.Module {
			return new(Provider)
		},
	}
}

// Expands placeholders (such as {env.MIAB_PASS}) in the settings.
func (p *Provider) Provision(ctx caddy.Context) error {
	repl := caddy.NewReplacer()
	p.APIURL = repl.ReplaceAll(p.APIURL, "")
	p.Username = repl.ReplaceAll(p.Username, "")
	p.Password = repl.ReplaceAll(p.Password, "")

	if p.APIURL == "" {
		return fmt.Errorf("mailinabox: missing api_url")
	}
	return nil
}

// Parses a mailinabox provider block.
//
// Syntax:
//
//	mailinabox [<api_url>] {
//		api_url <api_url>
//		username <username>
//		password <password>
//	}
func (p *Provider) UnmarshalCaddyfile(d *caddyfile.Dispenser) error {
	// Consume provider name.
	d.Next()

	if d.NextArg() {
		p.APIURL = d.Val()
	}
	if d.NextArg() {
		return d.ArgErr()
	}

	for nesting := d.Nesting(); d.NextBlock(nesting); {
		var target *string
		switch d.Val() {
		case "api_url":
			target = &p.APIURL
		case "username":
			target = &p.Username
		case "password":
			target = &p.Password
		default:
			return d.Errf("unrecognized mailinabox directive: %q", d.Val())
		}

		if *target != "" {
			return d.Errf("%s already set", d.Val())
		}
		if !d.AllArgs(target) {
			return d.ArgErr()
		}
	}

	return nil
}

func (p *Provider) client() *Client {
	return NewClient(p.APIURL, p.Username, p.Password, nil)
}

// Returns the custom records that fall inside zone.
func (p *Provider) GetRecords(
	ctx context.Context,
	zone string,
) ([]libdns.Record, error) {
	all, err := p.client().ListRecords(ctx)
	if err != nil {
		return nil, err
	}

	zoneName := strings.TrimSuffix(zone, ".")
	var result []libdns.Record
	for _, rec := range all {
		qname := strings.TrimSuffix(rec.QName, ".")
		if qname != zoneName && !strings.HasSuffix(qname, "."+zoneName) {
			continue
		}
		name := "@"
		if qname != zoneName {
			name = libdns.RelativeName(qname+".", zoneName+".")
		}
		result = append(result, libdns.RR{
			Name: name,
			Type: rec.RType,
			Data: rec.Value,
		})
	}
	return result, nil
}

// Adds the given records to zone. The box does not support per-record TTLs,
// so TTLs are ignored.
func (p *Provider) AppendRecords(
	ctx context.Context,
	zone string,
	records []libdns.Record,
) ([]libdns.Record, error) {
	c := p.client()
	for _, rec := range records {
		rr := rec.RR()
		_, err := c.AddRecord(ctx, absoluteName(rr.Name, zone), rr.Type, rr.Data)
		if err != nil {
			return nil, fmt.Errorf("mailinabox: append %s record %q: %w", rr.Type, rr.Name, err)
		}
	}
	return records, nil
}

// Deletes the given records from zone.
func (p *Provider) DeleteRecords(
	ctx context.Context,
	zone string,
	records []libdns.Record,
) ([]libdns.Record, error) {
	c := p.client()
	for _, rec := range records {
		rr := rec.RR()
		_, err := c.DeleteRecord(ctx, absoluteName(rr.Name, zone), rr.Type, rr.Data)
		if err != nil {
			return nil, fmt.Errorf("mailinabox: delete %s record %q: %w", rr.Type, rr.Name, err)
		}
	}
	return records, nil
}

// The box wants names without the trailing dot.
func absoluteName(name string, zone string) string {
	return strings.TrimSuffix(libdns.AbsoluteName(name, zone), ".")
}
