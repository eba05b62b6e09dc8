package jsonutil

import (
	"os"
	"path/filepath"
	"testing"
)

type fileConfig struct {
	Domain   string   `json:"domain"`
	Listen   []string `json:"listen"`
	Upstream struct {
		URL string `json:"url"`
	} `json:"upstream"`
}

func writeFile(t *testing.T, name string, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestUnmarshalFromFile_JSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"domain": "example.com",
		"listen": [":3000"],
		"upstream": {"url": "https://box.example.com"}
	}`)

	cfg, err := UnmarshalFromFile[fileConfig](path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Domain != "example.com" {
		t.Errorf("expected domain 'example.com', got %q", cfg.Domain)
	}
	if cfg.Upstream.URL != "https://box.example.com" {
		t.Errorf("unexpected upstream url %q", cfg.Upstream.URL)
	}
}

func TestUnmarshalFromFile_TOML(t *testing.T) {
	path := writeFile(t, "config.toml", `domain = "example.com"
listen = [":3000"]

[upstream]
url = "https://box.example.com"
`)

	cfg, err := UnmarshalFromFile[fileConfig](path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Domain != "example.com" {
		t.Errorf("expected domain 'example.com', got %q", cfg.Domain)
	}
	if len(cfg.Listen) != 1 || cfg.Listen[0] != ":3000" {
		t.Errorf("unexpected listen %v", cfg.Listen)
	}
	if cfg.Upstream.URL != "https://box.example.com" {
		t.Errorf("unexpected upstream url %q", cfg.Upstream.URL)
	}
}

func TestUnmarshalFromFile_BadTOML(t *testing.T) {
	path := writeFile(t, "config.toml", "domain = \n")
	if _, err := UnmarshalFromFile[fileConfig](path); err == nil {
		t.Fatal("expected error for malformed TOML, got nil")
	}
}

func TestUnmarshalFromFile_Missing(t *testing.T) {
	if _, err := UnmarshalFromFile[fileConfig]("/nonexistent/config.json"); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
