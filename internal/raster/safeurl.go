package raster

import (
	"fmt"
	"net"
	"net/url"
)

// IsSafeURL reports whether raw is an http(s) URL whose host does not resolve
// to a private, loopback or link-local address.
func IsSafeURL(raw string) (bool, error) {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false, fmt.Errorf("failed to parse URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return false, fmt.Errorf("URL has no host")
	}

	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	} else {
		ips, err = net.LookupIP(host)
		if err != nil {
			return false, fmt.Errorf("failed to resolve host %q: %w", host, err)
		}
	}

	for _, ip := range ips {
		if isBlockedIP(ip) {
			return false, nil
		}
	}
	return true, nil
}

func isBlockedIP(ip net.IP) bool {
	return ip.IsPrivate() ||
		ip.IsLoopback() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}
