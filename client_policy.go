package caddymiabrelay

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caddyserver/caddy/v2"
	x509policy "github.com/smallstep/certificates/authority/policy"
	"github.com/smallstep/certificates/authority/provisioner"
	"github.com/smallstep/certificates/policy"
)

// Per-user limits on which record names the relay will touch. Every request is
// already confined to the managed domain; these lists narrow it further, e.g.
// to keep a staging client away from production names.
//
// Entries use the smallstep name-policy syntax: "host.example.com" matches that
// name only, "*.example.com" matches one label below it. Names are matched
// without the "_acme-challenge." prefix.
type ClientPolicy struct {
	UserID string `json:"user_id"`

	AllowDomainsRaw []string `json:"allow_domains,omitempty"`
	DenyDomainsRaw  []string `json:"deny_domains,omitempty"`

	// Nil when neither list is set.
	DomainPolicy x509policy.X509Policy `json:"-"`
}

var _ caddy.Provisioner = (*ClientPolicy)(nil)

func (c *ClientPolicy) Provision(ctx caddy.Context) error {
	allowed, err := domainNameOptions(c.AllowDomainsRaw)
	if err != nil {
		return fmt.Errorf("allow_domains: %w", err)
	}
	denied, err := domainNameOptions(c.DenyDomainsRaw)
	if err != nil {
		return fmt.Errorf("deny_domains: %w", err)
	}
	c.AllowDomainsRaw, c.DenyDomainsRaw = nil, nil

	if allowed == nil && denied == nil {
		return nil
	}

	c.DomainPolicy, err = x509policy.NewX509PolicyEngine(&provisioner.X509Options{
		AllowedNames: allowed,
		DeniedNames:  denied,
	})
	if err != nil {
		return fmt.Errorf("unable to provision domain policy: %w", err)
	}
	return nil
}

// Cleans up a configured domain list to the form challenge names take after
// normalization: lower case, no trailing dot. Returns nil for an empty list.
func domainNameOptions(raw []string) (*x509policy.X509NameOptions, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	domains := make([]string, 0, len(raw))
	for _, d := range raw {
		d = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(d)), ".")
		if d == "" {
			return nil, fmt.Errorf("empty domain in list")
		}
		domains = append(domains, d)
	}
	return &x509policy.X509NameOptions{DNSDomains: domains}, nil
}

// Checks a bare domain (challenge prefix already removed) against the policy.
// Returns an empty reason if the domain is allowed.
func (c *ClientPolicy) check(domain string) (DenyReason, error) {
	if c.DomainPolicy == nil {
		return "", nil
	}

	err := c.DomainPolicy.IsDNSAllowed(domain)
	if err == nil {
		return "", nil
	}

	var npe *policy.NamePolicyError
	if errors.As(err, &npe) {
		switch npe.Reason {
		case policy.NotAllowed:
			return DenyDomainNotAllowed, nil
		case policy.CannotParseDomain:
			return DenyInvalidDomain, nil
		}
	}
	return "", fmt.Errorf("unable to check domain policy: %w", err)
}
