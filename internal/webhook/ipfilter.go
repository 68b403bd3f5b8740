package webhook

import (
	"fmt"
	"net/netip"
)

// AddressFilter matches client addresses against an allow-list of CIDR
// blocks. It is immutable after construction and safe for unlimited
// concurrent use.
type AddressFilter struct {
	prefixes []netip.Prefix
}

// NewAddressFilter parses the configured CIDR blocks. A malformed block is a
// fatal construction error, never a per-request failure.
func NewAddressFilter(cidrs []string) (*AddressFilter, error) {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, cidr := range cidrs {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, fmt.Errorf("parse cidr %q: %w", cidr, err)
		}
		prefixes = append(prefixes, prefix.Masked())
	}
	return &AddressFilter{prefixes: prefixes}, nil
}

// Allowed reports whether the address falls inside any configured block.
// Empty, placeholder, or unparsable addresses are always rejected.
func (f *AddressFilter) Allowed(address string) bool {
	if address == "" || address == "unknown" {
		return false
	}
	addr, err := netip.ParseAddr(address)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range f.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
