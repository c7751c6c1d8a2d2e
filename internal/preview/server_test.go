package preview

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRouter_Health(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	r := NewRouter(t.TempDir(), b)

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), `"status":"ok"`) {
			t.Errorf("GET %s body = %q", path, w.Body.String())
		}
	}
}

func TestRouter_ServesArtifacts(t *testing.T) {
	outputDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(outputDir, "doc.html"), []byte("<html>doc</html>"), 0o644); err != nil {
		t.Fatal(err)
	}

	b := NewBroker()
	defer b.Close()
	r := NewRouter(outputDir, b)

	req := httptest.NewRequest(http.MethodGet, "/doc.html", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET /doc.html = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "doc") {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestRouter_MissingArtifact(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	r := NewRouter(t.TempDir(), b)

	req := httptest.NewRequest(http.MethodGet, "/missing.pdf", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("GET /missing.pdf = %d, want 404", w.Code)
	}
}
