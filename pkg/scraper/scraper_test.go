package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScraperConfig(t *testing.T) {
	s := NewWithConfig(ScraperConfig{
		RateLimit:      5,
		IgnorePatterns: []string{"/ignore/", "private"},
		Timeout:        10 * time.Second,
	})
	assert.Equal(t, 10*time.Second, s.client.Timeout)
	assert.Equal(t, int64(5<<20), s.config.MaxBytes)
	assert.Equal(t, "resumatch/1.0", s.config.UserAgent)
}

func TestIsURL(t *testing.T) {
	tests := []struct {
		in       string
		expected bool
	}{
		{"https://jobs.example.com/123", true},
		{"  http://example.com/job  ", true},
		{"ftp://example.com/job", false},
		{"Senior Go engineer, see https://example.com", false},
		{"example.com/job", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsURL(tt.in))
		})
	}
}

func TestShouldProcessURL(t *testing.T) {
	s := NewWithConfig(ScraperConfig{IgnorePatterns: []string{"/ignore/", "private"}})

	assert.True(t, s.shouldProcessURL("https://example.com/jobs/1"))
	assert.False(t, s.shouldProcessURL("https://example.com/ignore/1"))
	assert.False(t, s.shouldProcessURL("https://private.example.com/1"))
}

func TestExtractMainContent(t *testing.T) {
	s := New()
	html := `<html><body>
		<nav>Home Jobs</nav>
		<script>var x = 1;</script>
		<main>Marketing blurb</main>
		<div class="job-description">
			<h2>Senior Go Engineer</h2>
			<p>Build   services on Kubernetes.</p>
			Privacy Policy
		</div>
		<footer>Terms of Service</footer>
	</body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	assert.Equal(t, "Senior Go Engineer Build services on Kubernetes.", s.extractMainContent(doc))
}

func TestFetchWithMockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "resumatch/1.0", r.UserAgent())
		switch r.URL.Path {
		case "/job":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(`
				<html>
					<head><title>Backend Engineer | Acme</title></head>
					<body>
						<article>
							<h1>Backend Engineer</h1>
							<p>Requirements: Go, PostgreSQL, 5+ years.</p>
						</article>
					</body>
				</html>`))
		case "/empty":
			w.Write([]byte(`<html><body><script>1</script></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	var seen []string
	s := NewWithConfig(ScraperConfig{
		RateLimit:    100,
		OnProgress:   func(url string) { seen = append(seen, url) },
		AllowPrivate: true,
	})
	ctx := context.Background()

	t.Run("article", func(t *testing.T) {
		posting, err := s.Fetch(ctx, server.URL+"/job")
		require.NoError(t, err)
		assert.Equal(t, "Backend Engineer | Acme", posting.Title)
		assert.Equal(t, "Backend Engineer Requirements: Go, PostgreSQL, 5+ years.", posting.Content)
		assert.Equal(t, "text/html", posting.Metadata["contentType"])
	})

	t.Run("not found", func(t *testing.T) {
		_, err := s.Fetch(ctx, server.URL+"/missing")
		assert.ErrorContains(t, err, "status code 404")
	})

	t.Run("no text", func(t *testing.T) {
		_, err := s.Fetch(ctx, server.URL+"/empty")
		assert.ErrorIs(t, err, ErrNoContent)
	})

	t.Run("invalid url", func(t *testing.T) {
		_, err := s.Fetch(ctx, "not a url")
		assert.ErrorIs(t, err, ErrInvalidURL)
	})

	assert.Len(t, seen, 3)
}

func TestFetchRefusesNonPublicAddresses(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`<html><body><main>internal admin page</main></body></html>`))
	}))
	defer server.Close()

	s := NewWithConfig(ScraperConfig{RateLimit: 100})

	_, err := s.Fetch(context.Background(), server.URL+"/job")
	assert.ErrorIs(t, err, ErrBlockedAddress)
	assert.Zero(t, hits)
}

func TestFetchRefusesNonHTTPRedirect(t *testing.T) {
	redirector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "ftp://example.com/job", http.StatusFound)
	}))
	defer redirector.Close()

	s := NewWithConfig(ScraperConfig{RateLimit: 100, AllowPrivate: true})
	_, err := s.Fetch(context.Background(), redirector.URL)
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestIsPublicAddr(t *testing.T) {
	tests := []struct {
		addr   string
		public bool
	}{
		{"93.184.216.34", true},
		{"2606:2800:220:1:248:1893:25c8:1946", true},
		{"127.0.0.1", false},
		{"10.1.2.3", false},
		{"172.16.0.1", false},
		{"192.168.1.10", false},
		{"169.254.169.254", false},
		{"100.64.0.1", false},
		{"0.0.0.0", false},
		{"::1", false},
		{"fe80::1", false},
		{"fd00::1", false},
		{"::ffff:127.0.0.1", false},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.public, IsPublicAddr(netip.MustParseAddr(tt.addr)))
		})
	}
}
