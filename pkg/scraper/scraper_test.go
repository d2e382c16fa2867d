package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrapeExtractsMainContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Attention Is All You Need</title></head>
<body><nav>Menu Privacy Policy</nav>
<article>Transformers use self-attention. They dispense with recurrence entirely.</article>
</body></html>`))
	}))
	defer srv.Close()

	s := New()
	page, err := s.Scrape(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, srv.URL, page.URL)
	assert.Equal(t, "Attention Is All You Need", page.Title)
	assert.Contains(t, page.Text, "Transformers use self-attention.")
	assert.NotContains(t, page.Text, "Menu") // article selector wins over body

	parsed, err := url.Parse(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, parsed.Host, page.Domain)
	assert.WithinDuration(t, time.Now().UTC(), page.ScrapedAt, time.Minute)
}

func TestScrapeFallsBackToBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>Plain body text only.</p></body></html>`))
	}))
	defer srv.Close()

	page, err := New().Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, page.Text, "Plain body text only.")
}

func TestScrapeNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := New().Scrape(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "status code 404")
}

func TestScrapeEmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body></body></html>`))
	}))
	defer srv.Close()

	_, err := New().Scrape(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "no extractable text")
}

func TestScrapeUnreachableHost(t *testing.T) {
	s := NewWithConfig(ScraperConfig{Timeout: time.Second})
	_, err := s.Scrape(context.Background(), "http://127.0.0.1:1/nothing")
	assert.Error(t, err)
}

func TestCleanContent(t *testing.T) {
	cleaned := cleanContent("  Some   text \n Privacy Policy here  ")
	assert.NotContains(t, cleaned, "Privacy Policy")
	assert.Contains(t, cleaned, "Some text")
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "ok", sanitizeUTF8("ok"))
	assert.True(t, len(sanitizeUTF8("bad\xffbyte")) < len("bad\xffbyte"))
}
