package caddymiabrelay

import (
	"encoding/json"
	"strings"

	"github.com/liujed/caddy-miabrelay/mailinabox"
)

// Record type used when a request does not name one.
const defaultRecordType = "txt"

// A string member of a JSON object that remembers whether it appeared in the
// object at all. A member given as null is present with a nil Value.
type OptionalString struct {
	Present bool
	Value   *string
}

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Present = true
	return json.Unmarshal(data, &o.Value)
}

func (o OptionalString) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Value)
}

// Returns the value, or "" if it is null or absent.
func (o OptionalString) String() string {
	if o.Value == nil {
		return ""
	}
	return *o.Value
}

// The JSON body of a /present, /cleanup, or /sync request.
//
// See https://github.com/libdns/acmeproxy/blob/f8e0a6620dddf349d1c9ba58b755aa7a25e5613f/provider.go#L20-L23.
type RequestBody struct {
	// The challenge domain at which the DNS-01 response should be written.
	ChallengeFQDN OptionalString `json:"fqdn"`

	// The value of the DNS-01 response. Only its presence is checked; null
	// and "" are relayed as an empty value.
	Value OptionalString `json:"value"`

	// DNS record type. Absent or null means "txt". An empty string leaves the
	// type out of the upstream path.
	Type OptionalString `json:"type"`
}

// A request body that has passed validation.
type ChallengePayload struct {
	FQDN  string
	Value string
	Type  string
}

// Reason a request body was rejected.
type ValidationError string

func (e ValidationError) Error() string {
	return string(e)
}

const (
	ErrMissingFQDN  ValidationError = "Missing fqdn"
	ErrMissingValue ValidationError = "Missing value"
)

// Checks that the body has the fields needed by the request. The value is
// only optional if requireValue is false. An fqdn that is null or empty counts
// as missing.
func (r RequestBody) Validate(requireValue bool) (ChallengePayload, error) {
	if r.ChallengeFQDN.String() == "" {
		return ChallengePayload{}, ErrMissingFQDN
	}
	if requireValue && !r.Value.Present {
		return ChallengePayload{}, ErrMissingValue
	}

	result := ChallengePayload{
		FQDN:  r.ChallengeFQDN.String(),
		Value: r.Value.String(),
		Type:  defaultRecordType,
	}
	if r.Type.Value != nil {
		result.Type = *r.Type.Value
	}
	return result, nil
}

// Places the payload's FQDN inside the managed domain. Names that already end
// with the domain (with or without a trailing dot) are kept; any other name
// gets a dot and the domain appended. The result never ends with a dot.
//
// The suffix check is on the raw string, not on label boundaries, so
// "fooexample.com" counts as already inside "example.com".
func (p ChallengePayload) Normalize(domain string) ChallengePayload {
	fqdn := p.FQDN
	if !strings.HasSuffix(fqdn, domain) && !strings.HasSuffix(fqdn, domain+".") {
		if !strings.HasSuffix(fqdn, ".") {
			fqdn += "."
		}
		fqdn += domain
	}
	p.FQDN = strings.TrimSuffix(fqdn, ".")

	return p
}

// Returns the upstream API path for the payload. The record type is left out
// when withType is false or the type is empty.
func (p ChallengePayload) UpstreamPath(withType bool) string {
	if !withType {
		return mailinabox.RecordPath(p.FQDN, "")
	}
	return mailinabox.RecordPath(p.FQDN, p.Type)
}
