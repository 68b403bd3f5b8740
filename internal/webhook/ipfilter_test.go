package webhook

import (
	"testing"

	"github.com/telegate/telegate/internal/config"
)

func TestAddressFilterTelegramRanges(t *testing.T) {
	t.Parallel()

	filter, err := NewAddressFilter(config.TelegramAllowedCIDRs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	allowed := []string{
		"149.154.160.1",
		"149.154.175.255",
		"91.108.4.10",
		"2001:67c:4e8::1",
		"2001:b28:f23d::2",
	}
	for _, addr := range allowed {
		if !filter.Allowed(addr) {
			t.Fatalf("expected %s to be allowed", addr)
		}
	}

	rejected := []string{
		"149.154.159.255",
		"149.154.176.0",
		"8.8.8.8",
		"10.0.0.1",
		"2001:db8::1",
	}
	for _, addr := range rejected {
		if filter.Allowed(addr) {
			t.Fatalf("expected %s to be rejected", addr)
		}
	}
}

func TestAddressFilterGarbageInput(t *testing.T) {
	t.Parallel()

	filter, err := NewAddressFilter([]string{"192.0.2.0/24"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, addr := range []string{"", "unknown", "not-an-ip", "300.1.2.3"} {
		if filter.Allowed(addr) {
			t.Fatalf("expected %q to be rejected", addr)
		}
	}
}

func TestAddressFilterMappedIPv4(t *testing.T) {
	t.Parallel()

	filter, err := NewAddressFilter([]string{"192.0.2.0/24"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filter.Allowed("::ffff:192.0.2.7") {
		t.Fatalf("expected mapped address to match the v4 block")
	}
}

func TestNewAddressFilterBadCIDR(t *testing.T) {
	t.Parallel()

	if _, err := NewAddressFilter([]string{"192.0.2.0/33"}); err == nil {
		t.Fatalf("expected error for malformed cidr")
	}
}
