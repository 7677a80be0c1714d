package damia

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tenderbot/internal/audit"
	"tenderbot/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logDir := t.TempDir()
	auditLog, err := audit.New(logDir)
	if err != nil {
		t.Fatalf("audit.New: %v", err)
	}
	t.Cleanup(func() { auditLog.Close() })

	c := NewClient(config.UpstreamConfig{
		BaseURL:        srv.URL,
		APIKey:         "KEY",
		TimeoutSeconds: 5,
	}, auditLog)
	return c, logDir
}

func TestRNPPassthrough(t *testing.T) {
	c, logDir := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/rnp") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("inn"); got != "7707083893" {
			t.Errorf("inn param: got %q", got)
		}
		if got := r.URL.Query().Get("key"); got != "KEY" {
			t.Errorf("key param: got %q", got)
		}
		w.Write([]byte(`{"7707083893":{"rnp":[]}}`))
	})

	body, err := c.RNP(context.Background(), "7707083893")
	if err != nil {
		t.Fatalf("RNP: %v", err)
	}
	if string(body) != `{"7707083893":{"rnp":[]}}` {
		t.Errorf("body not passed through unmodified: %s", body)
	}

	data, err := os.ReadFile(filepath.Join(logDir, "damia.log"))
	if err != nil {
		t.Fatalf("read damia.log: %v", err)
	}
	if !strings.Contains(string(data), "=== DAMIA API REQUEST ===") {
		t.Errorf("damia.log missing request block:\n%s", data)
	}
	if !strings.Contains(string(data), "=== DAMIA API RESPONSE ===") {
		t.Errorf("damia.log missing response block:\n%s", data)
	}
}

func TestMethodPaths(t *testing.T) {
	var paths []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Write([]byte(`{}`))
	})

	ctx := context.Background()
	if _, err := c.RNP(ctx, "1"); err != nil {
		t.Fatalf("RNP: %v", err)
	}
	if _, err := c.SRO(ctx, "1"); err != nil {
		t.Fatalf("SRO: %v", err)
	}
	if _, err := c.Egrul(ctx, "1"); err != nil {
		t.Fatalf("Egrul: %v", err)
	}

	want := []string{"/rnp", "/sros", "/egrul"}
	for i, p := range want {
		if paths[i] != p {
			t.Errorf("path %d: got %q, want %q", i, paths[i], p)
		}
	}
}

func TestNon200LandsInErrorLog(t *testing.T) {
	c, logDir := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"bad key"}`))
	})

	if _, err := c.RNP(context.Background(), "1"); err == nil {
		t.Fatal("expected error for 403 response")
	}

	data, err := os.ReadFile(filepath.Join(logDir, "errors.log"))
	if err != nil {
		t.Fatalf("read errors.log: %v", err)
	}
	if !strings.Contains(string(data), "Status: 403") {
		t.Errorf("errors.log missing Status: 403:\n%s", data)
	}
}
