package integration

import (
	"archive/zip"
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
)

// consentPage is the HTML gate the real site serves (with HTTP 200) when a
// request arrives without a valid session.
const consentPage = `
<!DOCTYPE html>
<html>
<head><title>DoD Consent Banner</title></head>
<body>You are accessing a U.S. Government information system.</body>
</html>`

// sessionCookieName is the cookie the mock site requires.
const sessionCookieName = "ASP.NET_SessionId"

// MockDIBBSServer simulates the download endpoints with realistic behavior:
// session-gated responses, a zip bundle, and a standalone text file under
// lowercase and uppercase URLs.
type MockDIBBSServer struct {
	server *httptest.Server

	mu           sync.RWMutex
	zipBody      []byte
	txtBody      []byte
	sessionValue string
	lowerMissing bool
	upperMissing bool

	requestCount int32
	headCount    int32
}

// NewMockDIBBSServer creates a mock server for the given date tag. Paths
// follow the real site layout: /Downloads/RFQ/Archive/bq<tag>.zip,
// /Downloads/RFQ/in<tag>.txt and /Downloads/RFQ/IN<tag>.TXT.
func NewMockDIBBSServer(dateTag, sessionValue string) *MockDIBBSServer {
	m := &MockDIBBSServer{sessionValue: sessionValue}

	mux := http.NewServeMux()
	mux.HandleFunc(fmt.Sprintf("/Downloads/RFQ/Archive/bq%s.zip", dateTag), m.handleZip)
	mux.HandleFunc(fmt.Sprintf("/Downloads/RFQ/in%s.txt", dateTag), m.handleLowerTxt)
	mux.HandleFunc(fmt.Sprintf("/Downloads/RFQ/IN%s.TXT", dateTag), m.handleUpperTxt)

	m.server = httptest.NewServer(mux)
	return m
}

// URL returns the server's base URL.
func (m *MockDIBBSServer) URL() string {
	return m.server.URL
}

// Close shuts the server down.
func (m *MockDIBBSServer) Close() {
	m.server.Close()
}

// SetZipMembers builds the zip bundle from member name -> content pairs.
func (m *MockDIBBSServer) SetZipMembers(members map[string][]byte) error {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range members {
		// Store members uncompressed so the archive's size reflects the
		// member content; deflate would shrink the repetitive test data
		// below the configured minimum-size thresholds.
		mw, err := w.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		if err != nil {
			return err
		}
		if _, err := mw.Write(content); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	m.mu.Lock()
	m.zipBody = buf.Bytes()
	m.mu.Unlock()
	return nil
}

// SetZipRaw serves raw bytes for the zip URL, for corrupt-download scenarios.
func (m *MockDIBBSServer) SetZipRaw(body []byte) {
	m.mu.Lock()
	m.zipBody = body
	m.mu.Unlock()
}

// SetTxtBody sets the standalone file's content.
func (m *MockDIBBSServer) SetTxtBody(body []byte) {
	m.mu.Lock()
	m.txtBody = body
	m.mu.Unlock()
}

// SetLowerMissing makes the lowercase URL return 404, forcing the fallback.
func (m *MockDIBBSServer) SetLowerMissing(missing bool) {
	m.mu.Lock()
	m.lowerMissing = missing
	m.mu.Unlock()
}

// SetUpperMissing makes the uppercase URL return 404.
func (m *MockDIBBSServer) SetUpperMissing(missing bool) {
	m.mu.Lock()
	m.upperMissing = missing
	m.mu.Unlock()
}

// RequestCount returns the number of GET requests served.
func (m *MockDIBBSServer) RequestCount() int {
	return int(atomic.LoadInt32(&m.requestCount))
}

// HeadCount returns the number of HEAD requests served.
func (m *MockDIBBSServer) HeadCount() int {
	return int(atomic.LoadInt32(&m.headCount))
}

// authorized checks the session cookie; the real site answers 200 with the
// consent page when the session is absent or stale.
func (m *MockDIBBSServer) authorized(r *http.Request) bool {
	m.mu.RLock()
	want := m.sessionValue
	m.mu.RUnlock()
	if want == "" {
		return true
	}
	c, err := r.Cookie(sessionCookieName)
	return err == nil && c.Value == want
}

func (m *MockDIBBSServer) serve(w http.ResponseWriter, r *http.Request, contentType string, body []byte, missing bool) {
	if r.Method == http.MethodHead {
		atomic.AddInt32(&m.headCount, 1)
	} else {
		atomic.AddInt32(&m.requestCount, 1)
	}

	if !m.authorized(r) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			w.Write([]byte(consentPage))
		}
		return
	}

	if missing {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(body)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(body)
	}
}

func (m *MockDIBBSServer) handleZip(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	body := m.zipBody
	m.mu.RUnlock()
	m.serve(w, r, "application/zip", body, body == nil)
}

func (m *MockDIBBSServer) handleLowerTxt(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	body, missing := m.txtBody, m.lowerMissing
	m.mu.RUnlock()
	m.serve(w, r, "text/plain", body, missing || body == nil)
}

func (m *MockDIBBSServer) handleUpperTxt(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	body, missing := m.txtBody, m.upperMissing
	m.mu.RUnlock()
	m.serve(w, r, "text/plain", body, missing || body == nil)
}
