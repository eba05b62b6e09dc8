package jsonutil

import (
	"strings"
	"testing"
)

type sample struct {
	Name *string `json:"name"`
}

func TestDecodeBody(t *testing.T) {
	got, err := DecodeBody[sample](strings.NewReader(`{"name": "x"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name == nil || *got.Name != "x" {
		t.Errorf("expected name 'x', got %v", got.Name)
	}
}

func TestDecodeBody_Empty(t *testing.T) {
	got, err := DecodeBody[sample](strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error for empty body: %v", err)
	}
	if got.Name != nil {
		t.Errorf("expected absent name, got %q", *got.Name)
	}
}

func TestDecodeBody_Invalid(t *testing.T) {
	if _, err := DecodeBody[sample](strings.NewReader("fqdn=x")); err == nil {
		t.Fatal("expected error for non-JSON body, got nil")
	}
}

func TestDecodeBody_TrailingData(t *testing.T) {
	for _, body := range []string{
		`{"name": "x"} junk`,
		`{"name": "x"}{"name": "y"}`,
		`{"name": "x"} }`,
	} {
		t.Run(body, func(t *testing.T) {
			if _, err := DecodeBody[sample](strings.NewReader(body)); err == nil {
				t.Fatal("expected error for trailing data, got nil")
			}
		})
	}

	got, err := DecodeBody[sample](strings.NewReader("{\"name\": \"x\"}\n\t "))
	if err != nil {
		t.Fatalf("unexpected error for trailing whitespace: %v", err)
	}
	if got.Name == nil || *got.Name != "x" {
		t.Errorf("expected name 'x', got %v", got.Name)
	}
}

func TestAsJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"status":"ok"}`, `{"status":"ok"}`},
		{`["a","b"]`, `["a","b"]`},
		{"updated DNS: example.com", `"updated DNS: example.com"`},
		{"", `""`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := string(AsJSON([]byte(tt.in))); got != tt.want {
				t.Errorf("AsJSON(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}
