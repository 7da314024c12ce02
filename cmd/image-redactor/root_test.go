package main

import (
	"bytes"
	"testing"
)

func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	if cmd.Use != "image-redactor" {
		t.Errorf("expected Use 'image-redactor', got %q", cmd.Use)
	}
	if !cmd.SilenceUsage || !cmd.SilenceErrors {
		t.Error("expected usage and errors to be silenced")
	}

	for _, name := range []string{"redact", "init-config", "version"} {
		found := false
		for _, sub := range cmd.Commands() {
			if sub.Name() == name {
				found = true
			}
		}
		if !found {
			t.Errorf("expected subcommand %q", name)
		}
	}

	for _, flag := range []string{"config", "log-level", "log-format", "verbose"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("expected persistent flag %q", flag)
		}
	}
}

func TestRootUnknownCommand(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"crop"})
	if err := cmd.Execute(); err == nil {
		t.Error("expected error for unknown command")
	}
}
