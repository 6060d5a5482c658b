package normalize

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strconv"
	"strings"
)

var (
	errInvalidURLScheme = errors.New("unsupported url scheme")
	errBlockedURLHost   = errors.New("blocked url host")
	errBlockedURLPort   = errors.New("blocked url port")
	errMissingURLHost   = errors.New("url host is required")
)

// validateFetchURL rejects anything that is not a public http(s) address on
// a standard port.
func validateFetchURL(rawURL string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errInvalidURLScheme
	}
	hostname := strings.ToLower(strings.TrimSpace(parsed.Hostname()))
	if hostname == "" {
		return nil, errMissingURLHost
	}
	if isBlockedHostname(hostname) {
		return nil, errBlockedURLHost
	}
	if !isAllowedPort(parsed.Port()) {
		return nil, errBlockedURLPort
	}
	return parsed, nil
}

func isAllowedPort(rawPort string) bool {
	trimmed := strings.TrimSpace(rawPort)
	if trimmed == "" {
		return true
	}
	port, err := strconv.Atoi(trimmed)
	if err != nil {
		return false
	}
	return port == 80 || port == 443
}

func isBlockedHostname(hostname string) bool {
	switch {
	case hostname == "localhost", strings.HasSuffix(hostname, ".localhost"):
		return true
	case strings.HasSuffix(hostname, ".local"), strings.HasSuffix(hostname, ".internal"):
		return true
	}
	if ip, err := netip.ParseAddr(strings.Trim(hostname, "[]")); err == nil {
		return isPrivateIP(ip)
	}
	return false
}

func isPrivateIP(ip netip.Addr) bool {
	if !ip.IsValid() {
		return true
	}
	ip = ip.Unmap()
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast() || ip.IsPrivate() || ip.IsUnspecified() {
		return true
	}
	return ip.Is6() && ip.IsInterfaceLocalMulticast()
}

// secureDialContext resolves the host itself so a public name pointing at a
// private address is refused at connect time.
func secureDialContext(base *net.Dialer) func(context.Context, string, string) (net.Conn, error) {
	if base == nil {
		base = &net.Dialer{}
	}
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		host, _, err := net.SplitHostPort(address)
		if err != nil {
			host = address
		}
		host = strings.TrimSpace(host)
		if host == "" {
			return nil, errors.New("empty host")
		}
		if isBlockedHostname(host) {
			return nil, errBlockedURLHost
		}

		ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
		if err != nil {
			return nil, err
		}
		if len(ips) == 0 {
			return nil, fmt.Errorf("no ip addresses for host %q", host)
		}
		for _, ip := range ips {
			if addr, ok := netip.AddrFromSlice(ip); ok && isPrivateIP(addr) {
				return nil, errBlockedURLHost
			}
		}
		return base.DialContext(ctx, network, address)
	}
}
