package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/tracelattice/tracelattice/pkg/perr"
)

func TestNewRootCmd_RejectsConflictingIPVersionFlags(t *testing.T) {
	cmd := NewRootCmd("test")
	cmd.SetArgs([]string{"--ipv4", "--ipv6", "--dry-run", "example.com"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	if err := cmd.Execute(); err == nil {
		t.Error("expected an error when both -4 and -6 are set")
	}
}

func TestNewRootCmd_RejectsConflictingAltPortFlags(t *testing.T) {
	cmd := NewRootCmd("test")
	cmd.SetArgs([]string{"-U", "-T", "--dry-run", "example.com"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	if err := cmd.Execute(); err == nil {
		t.Error("expected an error when both -U and -T are set")
	}
}

func TestNewRootCmd_RejectsPortsWithICMP(t *testing.T) {
	cmd := NewRootCmd("test")
	cmd.SetArgs([]string{"--protocol", "icmp", "--src-port", "12345", "--dry-run", "example.com"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	if err := cmd.Execute(); err == nil {
		t.Error("expected an error when --src-port is set with ICMP")
	}
}

func TestNewRootCmd_RejectsDstPortWithDefaultProtocol(t *testing.T) {
	cmd := NewRootCmd("test")
	cmd.SetArgs([]string{"--dst-port", "53", "--dry-run", "example.com"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	if err := cmd.Execute(); err == nil {
		t.Error("expected an error when --dst-port is set without an explicit non-ICMP protocol")
	}
}

func TestNewRootCmd_AcceptsPortsWithUDP(t *testing.T) {
	cmd := NewRootCmd("test")
	cmd.SetArgs([]string{"--protocol", "udp", "--src-port", "33456", "--dst-port", "33457", "--dry-run", "example.com"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	if err := cmd.Execute(); err != nil {
		t.Errorf("unexpected error for UDP with explicit ports: %v", err)
	}
}

func TestNewRootCmd_RejectsUnknownAlgorithm(t *testing.T) {
	cmd := NewRootCmd("test")
	cmd.SetArgs([]string{"--algorithm", "bogus", "--dry-run", "example.com"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	if err := cmd.Execute(); err == nil {
		t.Error("expected an error for an unrecognized algorithm name")
	}
}

func TestNewRootCmd_DryRunAcceptsValidConfig(t *testing.T) {
	cmd := NewRootCmd("test")
	cmd.SetArgs([]string{"--dry-run", "example.com"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)

	if err := cmd.Execute(); err != nil {
		t.Errorf("unexpected error on valid dry-run config: %v", err)
	}
}

func TestExitCode_MapsFatalKindsToOne(t *testing.T) {
	if exitCode(nil) != 0 {
		t.Error("exitCode(nil) should be 0")
	}
	if got := exitCode(perr.Wrap(perr.ErrConfigInvalid, errors.New("bad flag"))); got != 1 {
		t.Errorf("exitCode(ErrConfigInvalid) = %d, want 1", got)
	}
	if got := exitCode(errors.New("unrecognized")); got != 2 {
		t.Errorf("exitCode(plain error) = %d, want 2", got)
	}
}
