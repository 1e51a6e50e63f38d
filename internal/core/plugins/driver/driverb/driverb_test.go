package driverb

import (
	"context"
	"testing"

	"tower/internal/core/plugins"
)

func TestDialRejectsUnsupportedDriver(t *testing.T) {
	d := New()
	_, err := d.Dial(context.Background(),
		plugins.DeviceConfig{Name: "sw1", Host: "127.0.0.1", Port: 22, AdapterDriver: "not_a_real_driver"},
		plugins.SSHCredentials{Username: "admin", Password: "s3cret"})
	if err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestDialRequiresCredentials(t *testing.T) {
	d := New()
	_, err := d.Dial(context.Background(),
		plugins.DeviceConfig{Name: "sw1", Host: "127.0.0.1", Port: 22, AdapterDriver: "cisco_iosxe"},
		plugins.SSHCredentials{})
	if err == nil {
		t.Fatalf("expected error for missing credentials")
	}
}

func TestPromptPatternMatchesCommonPrompts(t *testing.T) {
	cases := []string{"switch1#", "router>", "host$", "switch1# "}
	for _, c := range cases {
		if !promptPattern.MatchString(c) {
			t.Errorf("promptPattern did not match %q", c)
		}
	}
}

func TestPromptPatternDoesNotMatchPlainOutput(t *testing.T) {
	if promptPattern.MatchString("Cisco IOS Software, Version 15.2") {
		t.Fatalf("promptPattern unexpectedly matched plain output")
	}
}

func TestStripEchoRemovesCommandAndPrompt(t *testing.T) {
	raw := "show version\nCisco IOS Software, Version 15.2\nswitch1#"
	got := stripEcho(raw, "show version")
	if want := "Cisco IOS Software, Version 15.2"; got != want {
		t.Fatalf("stripEcho() = %q, want %q", got, want)
	}
}

func TestStripEchoHandlesWhitespaceVariance(t *testing.T) {
	raw := "  show version  \noutput line\nswitch1# "
	got := stripEcho(raw, "show version")
	if want := "output line"; got != want {
		t.Fatalf("stripEcho() = %q, want %q", got, want)
	}
}

func TestSupportedDriversTableMatchesKnownTypes(t *testing.T) {
	for _, driver := range []string{"cisco_iosxe", "cisco_nxos", "cisco_iosxr", "arista_eos", "juniper_junos"} {
		if !supportedDrivers[driver] {
			t.Errorf("expected %q to be a supported driver", driver)
		}
	}
	if supportedDrivers["cisco_ios"] {
		t.Errorf("cisco_ios is a drivera (netmiko) type, not driverb (scrapli)")
	}
}
