package gate

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/jackmoore7/coles-web-app/internal/logging"
)

const (
	cloudflareIPv4URL = "https://www.cloudflare.com/ips-v4"
	cloudflareIPv6URL = "https://www.cloudflare.com/ips-v6"

	fetchTimeout = 10 * time.Second
)

// Published Cloudflare ranges, used when the startup fetch fails.
var fallbackPrefixes = []string{
	"173.245.48.0/20",
	"103.21.244.0/22",
	"103.22.200.0/22",
	"103.31.4.0/22",
	"141.101.64.0/18",
	"108.162.192.0/18",
	"190.93.240.0/20",
	"188.114.96.0/20",
	"197.234.240.0/22",
	"198.41.128.0/17",
	"162.158.0.0/15",
	"104.16.0.0/13",
	"104.24.0.0/14",
	"172.64.0.0/13",
	"131.0.72.0/22",
	"2400:cb00::/32",
	"2606:4700::/32",
	"2803:f800::/32",
	"2405:b500::/32",
	"2405:8100::/32",
	"2a06:98c0::/29",
	"2c0f:f248::/32",
}

// NetworkSet is the set of IP prefixes considered legitimate edge origins.
// Built once at startup and read-only afterwards, so lookups need no lock.
type NetworkSet struct {
	prefixes []netip.Prefix
}

// NewNetworkSet parses the given CIDR strings, skipping malformed entries.
func NewNetworkSet(cidrs []string) *NetworkSet {
	s := &NetworkSet{prefixes: make([]netip.Prefix, 0, len(cidrs))}
	for _, c := range cidrs {
		p, err := netip.ParsePrefix(strings.TrimSpace(c))
		if err != nil {
			continue
		}
		s.prefixes = append(s.prefixes, p)
	}
	return s
}

// Contains reports whether addr falls inside any prefix of the set.
func (s *NetworkSet) Contains(addr netip.Addr) bool {
	for _, p := range s.prefixes {
		if p.Contains(addr.Unmap()) {
			return true
		}
	}
	return false
}

// FetchCloudflareNetworks builds the network set from Cloudflare's
// published lists. Any failure falls back to the embedded ranges; this is
// called once per process, never per request.
func FetchCloudflareNetworks(ctx context.Context) *NetworkSet {
	client := &http.Client{Timeout: fetchTimeout}

	var cidrs []string
	for _, url := range []string{cloudflareIPv4URL, cloudflareIPv6URL} {
		lines, err := fetchLines(ctx, client, url)
		if err != nil {
			logging.Warn().Err(err).Str("url", url).
				Msg("cloudflare network fetch failed, using embedded fallback list")
			return NewNetworkSet(fallbackPrefixes)
		}
		cidrs = append(cidrs, lines...)
	}

	set := NewNetworkSet(cidrs)
	if len(set.prefixes) == 0 {
		logging.Warn().Msg("cloudflare network lists were empty, using embedded fallback list")
		return NewNetworkSet(fallbackPrefixes)
	}
	logging.Info().Int("prefixes", len(set.prefixes)).Msg("cloudflare networks loaded")
	return set
}

func fetchLines(ctx context.Context, client *http.Client, url string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var lines []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}
