package fetch

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dibbsget/pkg/config"
	"dibbsget/pkg/errors"
	"dibbsget/pkg/logger"
	"dibbsget/pkg/session"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	sess, err := session.Build(&session.StorageState{}, config.HTTPConfig{
		UserAgent: "dibbsget-test",
		Referer:   "https://example.com/",
	}, logger.NewNop())
	require.NoError(t, err)
	return NewClient(sess, logger.NewNop())
}

func TestIsMarkup(t *testing.T) {
	tests := []struct {
		name   string
		sample []byte
		want   bool
	}{
		{name: "html doctype", sample: []byte("<!DOCTYPE html><html>"), want: true},
		{name: "html tag", sample: []byte("<html><body>consent</body>"), want: true},
		{name: "leading whitespace", sample: []byte("  \r\n\t<html>"), want: true},
		{name: "text payload", sample: []byte("BQ RFQ DATA 250903"), want: false},
		{name: "zip magic", sample: []byte("PK\x03\x04zipdata"), want: false},
		{name: "empty", sample: nil, want: false},
		{name: "only whitespace", sample: []byte("   \n"), want: false},
		{name: "angle later", sample: []byte("data < more"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsMarkup(tt.sample))
		})
	}
}

func TestProbe(t *testing.T) {
	var gotMethod, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Length", "2048")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t)
	assert.True(t, c.Probe(srv.URL+"/bq250903.zip"))
	assert.Equal(t, http.MethodHead, gotMethod)
	assert.Equal(t, "dibbsget-test", gotAgent)
}

func TestProbeNonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t)
	assert.False(t, c.Probe(srv.URL+"/missing"))
}

func TestProbeTransportErrorIsFalse(t *testing.T) {
	c := newTestClient(t)
	assert.False(t, c.Probe("http://127.0.0.1:1/unreachable"))
}

func TestRetrieveWritesBody(t *testing.T) {
	payload := make([]byte, 200*1024)
	for i := range payload {
		payload[i] = byte('A' + i%26)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "nested", "in250903.txt.part")

	c := newTestClient(t)
	require.NoError(t, c.Retrieve(srv.URL+"/in250903.txt", dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestRetrieveNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "out.part")
	c := newTestClient(t)
	err := c.Retrieve(srv.URL+"/x", dest)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTransport))
}

func TestRetrieveDetectsMarkup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("\n  <html><head><title>Consent Required</title></head></html>"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "bq250903.zip.part")
	c := newTestClient(t)
	err := c.Retrieve(srv.URL+"/bq250903.zip", dest)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeContentMismatch))
}

func TestRetrieveSendsSessionCookies(t *testing.T) {
	var gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("ASP.NET_SessionId"); err == nil {
			gotCookie = c.Value
		}
		w.Write([]byte("payload data"))
	}))
	defer srv.Close()

	srvURL, err := url.Parse(srv.URL)
	require.NoError(t, err)
	state := &session.StorageState{Cookies: []session.Cookie{{
		Name:   "ASP.NET_SessionId",
		Value:  "abc123session",
		Domain: srvURL.Hostname(),
		Path:   "/",
	}}}
	sess, err := session.Build(state, config.HTTPConfig{UserAgent: "ua"}, logger.NewNop())
	require.NoError(t, err)

	c := NewClient(sess, logger.NewNop())
	dest := filepath.Join(t.TempDir(), "in.part")
	require.NoError(t, c.Retrieve(srv.URL+"/in250903.txt", dest))
	assert.Equal(t, "abc123session", gotCookie)
}
