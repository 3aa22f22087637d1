package sink

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestFSPut(t *testing.T) {
	root := t.TempDir()
	s, err := NewFS(root, "data")
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}

	if err := s.Put(context.Background(), "charts/cpi.png", strings.NewReader("png"), "image/png"); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "data", "charts", "cpi.png"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "png" {
		t.Errorf("unexpected contents %q", data)
	}

	if err := s.Put(context.Background(), "charts/cpi.png", strings.NewReader("again"), ""); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	data, _ = os.ReadFile(filepath.Join(root, "data", "charts", "cpi.png"))
	if string(data) != "again" {
		t.Errorf("expected overwrite, got %q", data)
	}

	entries, _ := os.ReadDir(filepath.Join(root, "data", "charts"))
	if len(entries) != 1 {
		t.Errorf("expected no temp files left, got %d entries", len(entries))
	}
}

func TestFSRejectsEscapingKeys(t *testing.T) {
	s, err := NewFS(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	for _, key := range []string{"", "/etc/passwd", "../x", "a/../../x", "."} {
		if err := s.Put(context.Background(), key, strings.NewReader("x"), ""); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("key %q: expected ErrInvalidKey, got %v", key, err)
		}
	}
}

func TestFSPutCancelled(t *testing.T) {
	s, err := NewFS(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Put(ctx, "meta.json", strings.NewReader("{}"), ""); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}

type recordedPut struct {
	path        string
	contentType string
	body        string
}

func TestS3Put(t *testing.T) {
	var (
		mu   sync.Mutex
		puts []recordedPut
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusNotImplemented)
			return
		}
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		puts = append(puts, recordedPut{path: r.URL.Path, contentType: r.Header.Get("Content-Type"), body: string(body)})
		mu.Unlock()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s, err := NewS3(context.Background(), S3Config{
		Bucket:          "exports",
		Prefix:          "/econdash/",
		Endpoint:        srv.URL,
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
	})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}

	if err := s.Put(context.Background(), "cpi_data.csv", io.NopCloser(strings.NewReader("date,value\n")), "text/csv"); err != nil {
		t.Fatalf("put: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(puts) != 1 {
		t.Fatalf("expected 1 put, got %d", len(puts))
	}
	if puts[0].path != "/exports/econdash/cpi_data.csv" {
		t.Errorf("unexpected path %q", puts[0].path)
	}
	if puts[0].contentType != "text/csv" {
		t.Errorf("unexpected content type %q", puts[0].contentType)
	}
	if !strings.Contains(puts[0].body, "date,value") {
		t.Errorf("unexpected body %q", puts[0].body)
	}
	if got := s.Location("cpi_data.csv"); got != "s3://exports/econdash/cpi_data.csv" {
		t.Errorf("unexpected location %q", got)
	}
}

func TestS3RequiresBucket(t *testing.T) {
	if _, err := NewS3(context.Background(), S3Config{}); err == nil {
		t.Fatalf("expected error without bucket")
	}
}
