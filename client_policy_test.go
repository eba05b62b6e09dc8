package caddymiabrelay

import (
	"testing"
)

func TestClientPolicy_NoLists(t *testing.T) {
	p := ClientPolicy{UserID: "acme"}
	if err := p.Provision(newTestContext(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.DomainPolicy != nil {
		t.Error("expected no domain policy without allow or deny lists")
	}

	reason, err := p.check("anything.example.com")
	if err != nil || reason != "" {
		t.Errorf("expected everything allowed, got %q %v", reason, err)
	}
}

func TestClientPolicy_Check(t *testing.T) {
	p := ClientPolicy{
		UserID: "acme",
		// Written the way people paste names from zone files.
		AllowDomainsRaw: []string{" WWW.Example.com. ", "*.staging.example.com"},
		DenyDomainsRaw:  []string{"db.staging.example.com"},
	}
	if err := p.Provision(newTestContext(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.AllowDomainsRaw != nil || p.DenyDomainsRaw != nil {
		t.Error("expected raw lists to be released after provisioning")
	}

	tests := []struct {
		domain string
		want   DenyReason
	}{
		{"www.example.com", ""},
		{"app.staging.example.com", ""},
		{"db.staging.example.com", DenyDomainNotAllowed},
		{"mail.example.com", DenyDomainNotAllowed},
		{"deep.app.staging.example.com", DenyDomainNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			reason, err := p.check(tt.domain)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if reason != tt.want {
				t.Errorf("got reason %q, want %q", reason, tt.want)
			}
		})
	}
}

func TestClientPolicy_EmptyEntry(t *testing.T) {
	p := ClientPolicy{UserID: "acme", DenyDomainsRaw: []string{"a.example.com", " "}}
	if err := p.Provision(newTestContext(t)); err == nil {
		t.Fatal("expected error for empty domain entry, got nil")
	}
}
