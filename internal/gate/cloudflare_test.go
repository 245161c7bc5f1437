package gate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFallbackSetContainment(t *testing.T) {
	set := NewNetworkSet(fallbackPrefixes)

	cases := []struct {
		ip       string
		contains bool
	}{
		{"198.41.128.5", true}, // inside 198.41.128.0/17
		{"104.16.1.1", true},
		{"2606:4700::1", true},
		{"8.8.8.8", false},
		{"192.168.1.1", false},
		{"2001:4860:4860::8888", false},
	}
	for _, tc := range cases {
		t.Run(tc.ip, func(t *testing.T) {
			addr, err := netip.ParseAddr(tc.ip)
			require.NoError(t, err)
			require.Equal(t, tc.contains, set.Contains(addr))
		})
	}
}

func TestNewNetworkSetSkipsMalformedEntries(t *testing.T) {
	set := NewNetworkSet([]string{"10.0.0.0/8", "garbage", "", "  172.16.0.0/12  "})
	require.Len(t, set.prefixes, 2)
	require.True(t, set.Contains(netip.MustParseAddr("172.16.5.5")))
}

func TestFetchLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "10.0.0.0/8\n\n172.16.0.0/12\n")
	}))
	defer srv.Close()

	lines, err := fetchLines(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, []string{"10.0.0.0/8", "172.16.0.0/12"}, lines)
}

func TestFetchLinesNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := fetchLines(context.Background(), srv.Client(), srv.URL)
	require.Error(t, err)
}
