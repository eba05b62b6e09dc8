package flags

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestAddStringFlag(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	config := AddStringFlag(cmd, Flag[string]{
		Name:         "config",
		ShortName:    'c',
		DefaultValue: "relay.json",
		UsageMsg:     "Configuration file",
	})

	if *config != "relay.json" {
		t.Errorf("expected default 'relay.json', got %q", *config)
	}
	if err := cmd.ParseFlags([]string{"-c", "other.toml"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *config != "other.toml" {
		t.Errorf("expected 'other.toml', got %q", *config)
	}
}

func TestAddStringSliceFlag(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	listen := AddStringSliceFlag(cmd, Flag[[]string]{
		Name:     "listen",
		UsageMsg: "Socket to listen on",
	})

	if err := cmd.ParseFlags([]string{"--listen", ":3000", "--listen", ":3001"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*listen) != 2 || (*listen)[1] != ":3001" {
		t.Errorf("unexpected listen values %v", *listen)
	}

	usage := cmd.Flags().Lookup("listen").Usage
	if !strings.HasSuffix(usage, "Can be specified multiple times") {
		t.Errorf("expected slice usage suffix, got %q", usage)
	}
}

func TestPersistentFlag(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	AddStringFlag(cmd, Flag[string]{
		Persistent: true,
		Name:       "home",
		Hidden:     true,
	})

	f := cmd.PersistentFlags().Lookup("home")
	if f == nil {
		t.Fatal("expected persistent flag to be defined")
	}
	if !f.Hidden {
		t.Error("expected flag to be hidden")
	}
}
