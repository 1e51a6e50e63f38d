package semaphore

import (
	"testing"
	"time"
)

func TestNewAppliesDefaults(t *testing.T) {
	s := New(nil, "sw1:22", 0, 0)
	if s.maxConc != 1 {
		t.Fatalf("maxConc default = %d, want 1", s.maxConc)
	}
	if s.leaseTTL != 120*time.Second {
		t.Fatalf("leaseTTL default = %v, want 120s", s.leaseTTL)
	}
}

func TestKeyNamespacing(t *testing.T) {
	s := New(nil, "sw1:22", 4, time.Minute)
	if got, want := s.key(), "device_lease:sw1:22"; got != want {
		t.Fatalf("key() = %q, want %q", got, want)
	}
	if got, want := DeviceKey("sw1:22"), "device_lease:sw1:22"; got != want {
		t.Fatalf("DeviceKey() = %q, want %q", got, want)
	}
}

func TestStringIncludesDeviceAndLimit(t *testing.T) {
	s := New(nil, "sw2:22", 3, 45*time.Second)
	got := s.String()
	for _, want := range []string{"sw2:22", "max=3", "45s"} {
		if !contains(got, want) {
			t.Fatalf("String() = %q, missing %q", got, want)
		}
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
