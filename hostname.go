package certman

import (
	"fmt"
	"net"
	"os"
	"strings"
)

// ResolveHostname determines the local hostname, preferring the fully
// qualified form obtained by reverse-resolving the host's own addresses.
// When no FQDN can be found it falls back to the unqualified hostname. The
// result seeds default Common Names only; it is never security relevant.
func ResolveHostname() (string, error) {
	host, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHostnameResolution, err)
	}
	if host == "" {
		return "", fmt.Errorf("%w: empty hostname", ErrHostnameResolution)
	}

	if addrs, err := net.LookupHost(host); err == nil {
		for _, addr := range addrs {
			names, err := net.LookupAddr(addr)
			if err != nil {
				continue
			}
			for _, name := range names {
				if fqdn := strings.TrimSuffix(name, "."); fqdn != "" {
					return fqdn, nil
				}
			}
		}
	}
	return host, nil
}
