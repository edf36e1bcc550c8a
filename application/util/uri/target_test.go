package uri

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testcases := []struct {
		desc     string
		raw      string
		expected Target
		wantErr  error
	}{
		{
			desc:     "plain without path",
			raw:      "http://example.com",
			expected: Target{Scheme: "http", Host: "example.com", Path: "/"},
		},
		{
			desc:     "secure with port and query",
			raw:      "HTTPS://Example.COM:8443/a/b?x=1&y=2#frag",
			expected: Target{Scheme: "https", Host: "example.com", Port: "8443", Path: "/a/b?x=1&y=2"},
		},
		{
			desc:     "ipv6 literal",
			raw:      "http://[::1]:8080/",
			expected: Target{Scheme: "http", Host: "::1", Port: "8080", Path: "/"},
		},
		{
			desc:     "internationalized host",
			raw:      "http://bücher.example/",
			expected: Target{Scheme: "http", Host: "xn--bcher-kva.example", Path: "/"},
		},
		{
			desc:     "escaped path kept",
			raw:      "http://example.com/a%20b",
			expected: Target{Scheme: "http", Host: "example.com", Path: "/a%20b"},
		},
		{
			desc:     "dot segments removed",
			raw:      "http://example.com/a/./b/../c",
			expected: Target{Scheme: "http", Host: "example.com", Path: "/a/c"},
		},
		{
			desc:     "query without path",
			raw:      "http://example.com?q",
			expected: Target{Scheme: "http", Host: "example.com", Path: "/?q"},
		},
		{
			desc:     "userinfo and empty port dropped",
			raw:      "http://user:pw@example.com:/",
			expected: Target{Scheme: "http", Host: "example.com", Path: "/"},
		},
		{
			desc:     "escaped host",
			raw:      "http://%65xample.com/",
			expected: Target{Scheme: "http", Host: "example.com", Path: "/"},
		},
		{
			desc:    "unsupported scheme",
			raw:     "ftp://example.com/",
			wantErr: ErrUnsupportedScheme,
		},
		{
			desc:    "relative reference",
			raw:     "/just/a/path",
			wantErr: ErrUnsupportedScheme,
		},
		{
			desc:    "missing host",
			raw:     "http:///path",
			wantErr: ErrMissingHost,
		},
		{
			desc:    "port with leading zero",
			raw:     "http://example.com:080/",
			wantErr: ErrInvalidPort,
		},
		{
			desc:    "port out of range",
			raw:     "http://example.com:70000/",
			wantErr: ErrInvalidPort,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			target, err := Parse(tc.raw)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, target)
		})
	}
}

func TestTarget(t *testing.T) {
	testcases := []struct {
		target    Target
		secure    bool
		service   string
		authority string
		str       string
	}{
		{
			target:    Target{Scheme: "http", Host: "example.com", Path: "/"},
			service:   "http",
			authority: "example.com",
			str:       "http://example.com/",
		},
		{
			target:    Target{Scheme: "https", Host: "example.com", Port: "443", Path: "/x"},
			secure:    true,
			service:   "443",
			authority: "example.com",
			str:       "https://example.com:443/x",
		},
		{
			target:    Target{Scheme: "http", Host: "::1", Port: "8080", Path: "/"},
			service:   "8080",
			authority: "[::1]:8080",
			str:       "http://[::1]:8080/",
		},
	}

	for _, tc := range testcases {
		t.Run(tc.str, func(t *testing.T) {
			assert.Equal(t, tc.secure, tc.target.Secure())
			assert.Equal(t, tc.service, tc.target.Service())
			assert.Equal(t, tc.authority, tc.target.Authority())
			assert.Equal(t, tc.str, tc.target.String())
		})
	}
}
